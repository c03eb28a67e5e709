package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"farmmarket/internal/forecast"
	"farmmarket/internal/media"
	"farmmarket/internal/model"
	"farmmarket/internal/otp"
	"farmmarket/internal/sms"
	"farmmarket/pkg/config"
	"farmmarket/pkg/database"
	"farmmarket/pkg/jwtutil"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTest(t *testing.T) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.DB = db

	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 1})

	mediaStore, err := media.NewStore(&config.MediaConfig{Dir: t.TempDir(), ThumbWidth: 64}, zap.NewNop())
	require.NoError(t, err)

	Init(
		forecast.New(filepath.Join(t.TempDir(), "missing.csv"), zap.NewNop()),
		otp.NewService(otp.NewMemoryStore(), time.Minute),
		sms.NewTwilioSender(&config.SMSConfig{}), // unconfigured: in-band fallback
		mediaStore,
	)
}

func jsonRequest(t *testing.T, method, target string, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func registerUser(t *testing.T, username, phone string, role model.Role) model.User {
	t.Helper()
	c, rec := jsonRequest(t, http.MethodPost, "/auth/register",
		fmt.Sprintf(`{"username":%q,"phone":%q,"password":"hunter2","role":%q}`, username, phone, role))
	require.NoError(t, Register(c))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var user model.User
	require.NoError(t, database.GetDB().Where("username = ?", username).First(&user).Error)
	return user
}

func actingAs(c echo.Context, user model.User) {
	c.Set("user_id", user.ID)
	c.Set("username", user.Username)
	c.Set("role", user.Role)
}

func TestRegisterHashesPasswordAndAudits(t *testing.T) {
	setupTest(t)

	user := registerUser(t, "greenacres", "+15550001", model.RoleFarmer)

	assert.NotEqual(t, "hunter2", user.Password, "password must not be stored in plaintext")
	assert.True(t, strings.HasPrefix(user.Password, "$2"), "expected a bcrypt hash")

	var logs []model.ActivityLog
	require.NoError(t, database.GetDB().Where("user_id = ?", user.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "Registered as farmer", logs[0].Action)
}

func TestRegisterRejectsDuplicatesAndBadRoles(t *testing.T) {
	setupTest(t)
	registerUser(t, "greenacres", "+15550001", model.RoleFarmer)

	c, rec := jsonRequest(t, http.MethodPost, "/auth/register",
		`{"username":"greenacres","phone":"+15559999","password":"x","role":"farmer"}`)
	require.NoError(t, Register(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	c, rec = jsonRequest(t, http.MethodPost, "/auth/register",
		`{"username":"other","phone":"+15550001","password":"x","role":"consumer"}`)
	require.NoError(t, Register(c))
	assert.Equal(t, http.StatusConflict, rec.Code, "phone is unique too")

	c, rec = jsonRequest(t, http.MethodPost, "/auth/register",
		`{"username":"boss","phone":"+15550002","password":"x","role":"admin"}`)
	require.NoError(t, Register(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "admin cannot self-register")
}

func TestLogin(t *testing.T) {
	setupTest(t)
	user := registerUser(t, "alex", "+15550002", model.RoleConsumer)

	c, rec := jsonRequest(t, http.MethodPost, "/auth/login",
		`{"username":"alex","password":"hunter2"}`)
	require.NoError(t, Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	claims, err := jwtutil.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.RoleConsumer, claims.Role)

	c, rec = jsonRequest(t, http.MethodPost, "/auth/login",
		`{"username":"alex","password":"wrong"}`)
	require.NoError(t, Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPhoneRecoveryFlow(t *testing.T) {
	setupTest(t)
	user := registerUser(t, "alex", "+15550002", model.RoleConsumer)

	// Unknown phone
	c, rec := jsonRequest(t, http.MethodPost, "/auth/forgot-password", `{"phone":"+19999999"}`)
	require.NoError(t, ForgotPassword(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// No SMS gateway configured: the code comes back in-band.
	c, rec = jsonRequest(t, http.MethodPost, "/auth/forgot-password", `{"phone":"+15550002"}`)
	require.NoError(t, ForgotPassword(c))
	require.Equal(t, http.StatusOK, rec.Code)
	code, _ := decode(t, rec)["test_otp"].(string)
	require.Len(t, code, 4)

	// Wrong code is rejected.
	c, rec = jsonRequest(t, http.MethodPost, "/auth/verify-otp",
		`{"phone":"+15550002","otp":"0000"}`)
	require.NoError(t, VerifyOTP(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Right code logs the user in.
	c, rec = jsonRequest(t, http.MethodPost, "/auth/verify-otp",
		fmt.Sprintf(`{"phone":"+15550002","otp":%q}`, code))
	require.NoError(t, VerifyOTP(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	token, _ := body["token"].(string)
	claims, err := jwtutil.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	var logs []model.ActivityLog
	require.NoError(t, database.GetDB().
		Where("user_id = ? AND action = ?", user.ID, "Logged in via OTP").
		Find(&logs).Error)
	assert.Len(t, logs, 1)
}

func TestOrderFlowThroughHandlers(t *testing.T) {
	setupTest(t)
	farmer := registerUser(t, "greenacres", "+15550001", model.RoleFarmer)
	consumer := registerUser(t, "alex", "+15550002", model.RoleConsumer)

	product := model.Product{Name: "Tomato", Price: 12.5, Quantity: 20, FarmerID: farmer.ID}
	require.NoError(t, database.GetDB().Create(&product).Error)

	// Consumer places an order.
	c, rec := jsonRequest(t, http.MethodPost, "/api/products/:id/order", `{"quantity":5}`)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", product.ID))
	actingAs(c, consumer)
	require.NoError(t, PlaceOrder(c))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order model.Order
	require.NoError(t, database.GetDB().Where("consumer_id = ?", consumer.ID).First(&order).Error)
	assert.Equal(t, model.OrderPending, order.Status)

	// A stranger cannot accept it.
	stranger := registerUser(t, "rival", "+15550003", model.RoleFarmer)
	c, rec = jsonRequest(t, http.MethodPost, "/api/orders/:id/accept", "")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", order.ID))
	actingAs(c, stranger)
	require.NoError(t, AcceptOrder(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The owning farmer accepts; stock drops.
	c, rec = jsonRequest(t, http.MethodPost, "/api/orders/:id/accept", "")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", order.ID))
	actingAs(c, farmer)
	require.NoError(t, AcceptOrder(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var after model.Product
	require.NoError(t, database.GetDB().First(&after, product.ID).Error)
	assert.Equal(t, 15, after.Quantity)

	// Accepting again conflicts.
	c, rec = jsonRequest(t, http.MethodPost, "/api/orders/:id/accept", "")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", order.ID))
	actingAs(c, farmer)
	require.NoError(t, AcceptOrder(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPlaceOrderValidation(t *testing.T) {
	setupTest(t)
	farmer := registerUser(t, "greenacres", "+15550001", model.RoleFarmer)
	consumer := registerUser(t, "alex", "+15550002", model.RoleConsumer)

	product := model.Product{Name: "Tomato", Price: 12.5, Quantity: 3, FarmerID: farmer.ID}
	require.NoError(t, database.GetDB().Create(&product).Error)

	c, rec := jsonRequest(t, http.MethodPost, "/api/products/:id/order", `{"quantity":10}`)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprintf("%d", product.ID))
	actingAs(c, consumer)
	require.NoError(t, PlaceOrder(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = jsonRequest(t, http.MethodPost, "/api/products/:id/order", `{"quantity":1}`)
	c.SetParamNames("id")
	c.SetParamValues("9999")
	actingAs(c, consumer)
	require.NoError(t, PlaceOrder(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutAuditsOnce(t *testing.T) {
	setupTest(t)
	user := registerUser(t, "alex", "+15550002", model.RoleConsumer)

	c, rec := jsonRequest(t, http.MethodPost, "/api/auth/logout", "")
	actingAs(c, user)
	require.NoError(t, Logout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var logs []model.ActivityLog
	require.NoError(t, database.GetDB().
		Where("user_id = ? AND action = ?", user.ID, "Logged out").
		Find(&logs).Error)
	assert.Len(t, logs, 1)
}

func productForm(t *testing.T, fields map[string]string, filename string, content []byte) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/products", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestCreateProductStoresImageAndAudits(t *testing.T) {
	setupTest(t)
	farmer := registerUser(t, "greenacres", "+15550001", model.RoleFarmer)

	c, rec := productForm(t, map[string]string{
		"name": "Tomato", "category": "Vegetable", "price": "12.5", "quantity": "20",
	}, "tomato.png", pngBytes(t))
	actingAs(c, farmer)
	require.NoError(t, CreateProduct(c))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var product model.Product
	require.NoError(t, database.GetDB().Where("farmer_id = ?", farmer.ID).First(&product).Error)
	assert.Equal(t, "Tomato", product.Name)
	assert.Equal(t, "Not specified", product.Location, "omitted location gets the default")
	assert.NotEqual(t, media.DefaultImage, product.Image)
	assert.True(t, strings.HasSuffix(product.Image, ".png"))

	var logs []model.ActivityLog
	require.NoError(t, database.GetDB().
		Where("user_id = ? AND action = ?", farmer.ID, "Added new product: Tomato").
		Find(&logs).Error)
	assert.Len(t, logs, 1)
}

func TestCreateProductDisallowedImageFallsBack(t *testing.T) {
	setupTest(t)
	farmer := registerUser(t, "greenacres", "+15550001", model.RoleFarmer)

	c, rec := productForm(t, map[string]string{
		"name": "Tomato", "price": "12.5", "quantity": "20",
	}, "malware.exe", []byte("MZ"))
	actingAs(c, farmer)
	require.NoError(t, CreateProduct(c))
	require.Equal(t, http.StatusCreated, rec.Code, "a bad upload never fails the listing")

	var product model.Product
	require.NoError(t, database.GetDB().Where("farmer_id = ?", farmer.ID).First(&product).Error)
	assert.Equal(t, media.DefaultImage, product.Image)
}

func TestCreateProductValidation(t *testing.T) {
	setupTest(t)
	farmer := registerUser(t, "greenacres", "+15550001", model.RoleFarmer)

	cases := []map[string]string{
		{"name": "Tomato", "price": "0", "quantity": "5"},
		{"name": "Tomato", "price": "-1", "quantity": "5"},
		{"name": "Tomato", "price": "12.5", "quantity": "-1"},
		{"name": "", "price": "12.5", "quantity": "5"},
	}
	for _, fields := range cases {
		c, rec := productForm(t, fields, "", nil)
		actingAs(c, farmer)
		require.NoError(t, CreateProduct(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "fields: %v", fields)
	}
}

func TestCheckForecastWithoutData(t *testing.T) {
	setupTest(t)
	consumer := registerUser(t, "alex", "+15550002", model.RoleConsumer)

	c, rec := jsonRequest(t, http.MethodPost, "/api/forecast", `{"product":"Tomato"}`)
	actingAs(c, consumer)
	require.NoError(t, CheckForecast(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	result, _ := body["forecast"].(map[string]interface{})
	require.NotNil(t, result)
	assert.Equal(t, forecast.TrendNoData, result["trend"])
}
