package main

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medidesk/clinic-server/internal/api"
	"github.com/medidesk/clinic-server/internal/config"
	"github.com/medidesk/clinic-server/internal/repository"
	"github.com/medidesk/clinic-server/internal/service"
	"github.com/medidesk/clinic-server/internal/storage"
	"github.com/medidesk/clinic-server/internal/utils"
)

func main() {
	logger := utils.NewLogger()

	// Load configuration
	cfg := config.LoadConfig()

	// Set up the record store
	store := storage.New(cfg.Storage.DataDir)
	if err := store.Init(); err != nil {
		logger.Fatal("Failed to initialize record store: %v", err)
	}

	// Create repositories
	patients := repository.NewPatients(store)
	appointments := repository.NewAppointments(store, patients)
	finance := repository.NewFinance(store)
	users := repository.NewUsers(store)

	// Create the login guard and authentication service
	guard := service.NewLoginGuard(store)
	auth := service.NewAuth(store, users, guard, cfg.Auth.JWTSecret, cfg.Auth.HashSalt, cfg.Auth.LoginDelay)

	// Create API handler
	handler := api.NewHandler(auth, patients, appointments, finance, logger)

	// Set up Gin router
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes with a rate limiter on the auth endpoints
	limiter := api.NewRateLimiter(5, 10)
	handler.SetupRoutes(router, limiter)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Starting server on %s", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
