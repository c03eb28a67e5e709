package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"farmmarket/internal/activity"
	"farmmarket/internal/locale"
	"farmmarket/internal/middleware"
	"farmmarket/internal/model"
	"farmmarket/internal/otp"
	"farmmarket/pkg/database"
	"farmmarket/pkg/jwtutil"
	"farmmarket/pkg/logger"
	"farmmarket/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Username string     `json:"username"`
		Phone    string     `json:"phone"`
		Password string     `json:"password"`
		Role     model.Role `json:"role"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Username == "" || req.Phone == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username, phone and password are required"})
	}

	// The bootstrap admin is the only admin; everyone else signs up as a
	// farmer or consumer.
	if req.Role != model.RoleFarmer && req.Role != model.RoleConsumer {
		prometheus.RecordAuthError("invalid_role")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be farmer or consumer"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var existing model.User
	result := database.GetDB().
		Where("username = ? OR phone = ?", req.Username, req.Phone).
		First(&existing)
	if result.Error == nil {
		log.Warn("Registration conflict", zap.String("username", req.Username))
		prometheus.RecordAuthError("already_exists")
		return c.JSON(http.StatusConflict, echo.Map{
			"error": locale.T(c, "Username or Phone number already exists."),
		})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	user := model.User{
		Username: req.Username,
		Phone:    req.Phone,
		Password: string(hashed),
		Role:     req.Role,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&user); result.Error != nil {
		log.Error("Failed to create user", zap.Error(result.Error))
		prometheus.RecordAuthError("user_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	activity.Record(database.GetDB(), user.ID, fmt.Sprintf("Registered as %s", user.Role))

	token, err := jwtutil.GenerateToken(user.Username, user.ID, user.Role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}
	prometheus.IncreaseActiveTokens()

	log.Info("User registered",
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)))

	return c.JSON(http.StatusCreated, echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	result := database.GetDB().Where("username = ?", req.Username).First(&user)
	if result.Error != nil {
		log.Warn("User not found", zap.String("username", req.Username))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error": locale.T(c, "Invalid credentials"),
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("username", req.Username))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error": locale.T(c, "Invalid credentials"),
		})
	}

	token, err := jwtutil.GenerateToken(user.Username, user.ID, user.Role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}
	prometheus.IncreaseActiveTokens()

	activity.Record(database.GetDB(), user.ID, "Logged in via password")

	log.Info("User logged in",
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

// ForgotPassword issues a one-time code to the phone number on file. When
// SMS delivery fails or no gateway is configured the code comes back in the
// response body so recovery still works in test setups.
func ForgotPassword(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Phone string `json:"phone"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	var user model.User
	result := database.GetDB().Where("phone = ?", req.Phone).First(&user)
	if result.Error != nil {
		prometheus.RecordAuthError("phone_not_found")
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": locale.T(c, "Phone number not found."),
		})
	}

	code, err := OTP.Issue(c.Request().Context(), user.Phone)
	if err != nil {
		if errors.Is(err, otp.ErrRateLimited) {
			prometheus.RecordAuthError("otp_rate_limited")
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many code requests, try again later"})
		}
		log.Error("Failed to issue recovery code", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not issue code"})
	}
	prometheus.OTPIssuedCounter.Inc()

	body := fmt.Sprintf("Your FarmMarket recovery code is: %s", code)
	if err := SMS.Send(c.Request().Context(), user.Phone, body); err != nil {
		// Any delivery failure degrades to the in-band path.
		log.Warn("SMS delivery failed, returning code in-band", zap.Error(err))
		return c.JSON(http.StatusOK, echo.Map{
			"message":  locale.T(c, "SMS delivery unavailable. Use the code below."),
			"test_otp": code,
		})
	}

	log.Info("Recovery code sent", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{
		"message": locale.T(c, fmt.Sprintf("OTP sent via SMS to %s!", user.Phone)),
	})
}

// VerifyOTP checks a submitted code and, on success, logs the user in.
func VerifyOTP(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Phone string `json:"phone"`
		OTP   string `json:"otp"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := OTP.Verify(c.Request().Context(), req.Phone, req.OTP); err != nil {
		log.Warn("OTP verification failed", zap.Error(err))
		prometheus.RecordAuthError("otp_mismatch")
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error": locale.T(c, "Invalid OTP. Please try again."),
		})
	}

	var user model.User
	if result := database.GetDB().Where("phone = ?", req.Phone).First(&user); result.Error != nil {
		prometheus.RecordAuthError("phone_not_found")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	token, err := jwtutil.GenerateToken(user.Username, user.ID, user.Role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}
	prometheus.IncreaseActiveTokens()

	activity.Record(database.GetDB(), user.ID, "Logged in via OTP")

	log.Info("User logged in via OTP", zap.String("username", user.Username))
	return c.JSON(http.StatusOK, echo.Map{
		"message": locale.T(c, "OTP Verified! Logged in successfully."),
		"token":   token,
		"user": map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

// Logout records the audit entry. Tokens are stateless, so there is nothing
// to revoke server-side.
func Logout(c echo.Context) error {
	userID := middleware.ActingUserID(c)
	activity.Record(database.GetDB(), userID, "Logged out")
	prometheus.DecreaseActiveTokens()
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// SetLanguage stores the user's language preference.
func SetLanguage(c echo.Context) error {
	log := logger.FromContext(c)
	userID := middleware.ActingUserID(c)

	var req struct {
		Language string `json:"language"`
	}
	if err := c.Bind(&req); err != nil || req.Language == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "language is required"})
	}

	if err := database.GetDB().Model(&model.User{}).
		Where("id = ?", userID).
		Update("language", req.Language).Error; err != nil {
		log.Error("Failed to update language", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not save preference"})
	}

	return c.JSON(http.StatusOK, echo.Map{"language": req.Language})
}
