package main

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tipjar/internal/auth"
	"tipjar/internal/email"
	"tipjar/internal/handlers"
	"tipjar/internal/middleware"
	"tipjar/internal/payments"
	"tipjar/internal/store"
)

// This struct holds our loaded configuration.
type Config struct {
	DSN                 string `mapstructure:"DSN"`
	StoreBackend        string `mapstructure:"STORE_BACKEND"`
	SupabaseURL         string `mapstructure:"SUPABASE_URL"`
	SupabaseServiceKey  string `mapstructure:"SUPABASE_SERVICE_KEY"`
	StripeAPIKey        string `mapstructure:"STRIPE_API_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	ResendAPIKey        string `mapstructure:"RESEND_API_KEY"`
	FrontendURL         string `mapstructure:"FRONTEND_URL"`
	CORSOrigins         string `mapstructure:"CORS_ORIGINS"`
	Port                string `mapstructure:"PORT"`
}

// loadConfig reads config.env from the working directory, with
// environment variables taking precedence.
func loadConfig() (config Config, err error) {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("DSN", "")
	viper.SetDefault("STORE_BACKEND", "postgres")
	viper.SetDefault("SUPABASE_URL", "")
	viper.SetDefault("SUPABASE_SERVICE_KEY", "")
	viper.SetDefault("STRIPE_API_KEY", "")
	viper.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	viper.SetDefault("RESEND_API_KEY", "")
	viper.SetDefault("FRONTEND_URL", "http://localhost:3000")
	viper.SetDefault("CORS_ORIGINS", "*")
	viper.SetDefault("PORT", "8080")

	if err = viper.ReadInConfig(); err != nil {
		// A missing config file is fine; the environment still applies.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}

// newStore picks the persistence backend from configuration.
func newStore(config Config) (store.Store, error) {
	if config.StoreBackend == "supabase" {
		log.Info("Using Supabase (PostgREST) store backend")
		return store.NewSupabaseStore(config.SupabaseURL+"/rest/v1", config.SupabaseServiceKey), nil
	}

	db, err := sqlx.Connect("pgx", config.DSN)
	if err != nil {
		return nil, err
	}
	log.Info("Successfully connected to PostgreSQL")
	return store.NewPostgresStore(db), nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.Info("Starting tipping page server...")

	// Load Configuration
	config, err := loadConfig()
	if err != nil {
		log.Fatal("cannot load config: ", err)
	}

	// Pick the persistence backend
	st, err := newStore(config)
	if err != nil {
		log.Fatal("cannot connect to store: ", err)
	}

	// External collaborators
	provider := payments.NewStripeProvider(config.StripeAPIKey, config.StripeWebhookSecret)
	mailer := email.NewResendSender(config.ResendAPIKey)

	// Components
	authService := auth.NewService(st)
	reconciler := payments.NewReconciler(st, provider)

	// Set up our Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	corsConfig := cors.DefaultConfig()
	if config.CORSOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(config.CORSOrigins, ",")
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Stripe-Signature")
	r.Use(cors.New(corsConfig))

	// Create handler instances
	adminHandler := handlers.NewAdminHandler(authService, st, mailer, config.FrontendURL)
	creatorHandler := handlers.NewCreatorHandler(st)
	checkoutHandler := handlers.NewCheckoutHandler(reconciler)

	// All API routes under /api
	api := r.Group("/api")
	{
		api.GET("/", func(c *gin.Context) {
			c.JSON(200, gin.H{"message": "Tipping Page API"})
		})

		api.GET("/creator", creatorHandler.GetProfile)
		api.POST("/creator", creatorHandler.UpdateProfile)

		api.POST("/checkout/session", checkoutHandler.CreateSession)
		api.GET("/checkout/status/:session_id", checkoutHandler.GetStatus)
		api.POST("/webhook/stripe", checkoutHandler.Webhook)
		api.GET("/tips/recent", checkoutHandler.RecentTips)

		admin := api.Group("/admin")
		{
			admin.POST("/login", adminHandler.Login)
			admin.POST("/change-password", adminHandler.ChangePassword)
			admin.POST("/request-password-change", adminHandler.RequestPasswordChange)
			admin.POST("/verify-password-change", adminHandler.VerifyPasswordChange)
			admin.GET("/profile/:admin_id", adminHandler.GetProfile)
		}
	}

	// Start the server
	log.Info("Server starting on http://localhost:", config.Port)
	if err := r.Run(":" + config.Port); err != nil {
		log.Fatal("could not start server: ", err)
	}
}
