package main

import (
	"farmmarket/internal/forecast"
	"farmmarket/internal/handler"
	"farmmarket/internal/locale"
	"farmmarket/internal/media"
	"farmmarket/internal/middleware"
	"farmmarket/internal/model"
	"farmmarket/internal/otp"
	"farmmarket/internal/sms"
	"farmmarket/pkg/config"
	"farmmarket/pkg/database"
	"farmmarket/pkg/jwtutil"
	"farmmarket/pkg/logger"
	"farmmarket/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting farmmarket service...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	if err := bootstrapAdmin(database.GetDB(), cfg, log); err != nil {
		log.Fatal("Failed to bootstrap admin account", zap.Error(err))
	}

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)

	// Load the historical sales snapshot
	forecaster := forecast.New(cfg.Forecast.DataFile, log)

	// OTP store: redis when configured, in-process otherwise
	var otpStore otp.Store
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		otpStore = otp.NewRedisStore(client)
		log.Info("OTP store backed by redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		otpStore = otp.NewMemoryStore()
		log.Info("OTP store in-process")
	}
	otpService := otp.NewService(otpStore, cfg.SMS.OTPTTL)

	mediaStore, err := media.NewStore(&cfg.Media, log)
	if err != nil {
		log.Fatal("Failed to initialize media store", zap.Error(err))
	}

	handler.Init(forecaster, otpService, sms.NewTwilioSender(&cfg.SMS), mediaStore)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)
	e.Static("/static/product_images", cfg.Media.Dir)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/register", handler.Register)
	auth.POST("/login", handler.Login)
	auth.POST("/forgot-password", handler.ForgotPassword)
	auth.POST("/verify-otp", handler.VerifyOTP)

	// API routes - all require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)
	api.Use(localeMiddleware())

	api.POST("/auth/logout", handler.Logout)
	api.POST("/auth/language", handler.SetLanguage)

	// Catalog
	api.GET("/products", handler.ListProducts)

	// Farmer operations
	farmer := api.Group("", middleware.RequireRole(model.RoleFarmer))
	farmer.POST("/products", handler.CreateProduct)
	farmer.GET("/products/mine", handler.MyProducts)
	farmer.GET("/orders/incoming", handler.IncomingOrders)
	farmer.POST("/orders/:id/accept", handler.AcceptOrder)
	farmer.POST("/orders/:id/reject", handler.RejectOrder)
	farmer.GET("/dashboard/farmer", handler.FarmerDashboard)

	// Consumer operations
	consumer := api.Group("", middleware.RequireRole(model.RoleConsumer))
	consumer.POST("/products/:id/order", handler.PlaceOrder)
	consumer.GET("/orders", handler.MyOrders)
	consumer.GET("/dashboard/consumer", handler.ConsumerDashboard)

	// Admin operations
	admin := api.Group("", middleware.RequireRole(model.RoleAdmin))
	admin.GET("/dashboard/admin", handler.AdminDashboard)
	admin.POST("/forecast/reload", handler.ReloadForecast)

	// Demand forecast, available to any authenticated user
	api.POST("/forecast", handler.CheckForecast)

	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}

// localeMiddleware resolves the request language from the lang query
// parameter, falling back to the stored user preference.
func localeMiddleware() echo.MiddlewareFunc {
	return locale.Middleware(func(c echo.Context) string {
		userID, ok := c.Get("user_id").(uint)
		if !ok {
			return ""
		}
		var lang string
		database.GetDB().Model(&model.User{}).
			Select("language").
			Where("id = ?", userID).
			Scan(&lang)
		return lang
	})
}

// bootstrapAdmin creates the administrator account on first boot. Skipped
// when no admin password is configured.
func bootstrapAdmin(db *gorm.DB, cfg *config.Config, log *zap.Logger) error {
	if cfg.Admin.Password == "" {
		log.Warn("ADMIN_PASSWORD not set, skipping admin bootstrap")
		return nil
	}

	var existing model.User
	if err := db.Where("username = ?", cfg.Admin.Username).First(&existing).Error; err == nil {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.Admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := model.User{
		Username: cfg.Admin.Username,
		Phone:    cfg.Admin.Phone,
		Password: string(hashed),
		Role:     model.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Info("Admin account created", zap.String("username", admin.Username))
	return nil
}
