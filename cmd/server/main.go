package main

import (
	"log"

	"taskhub/internal/api"
	"taskhub/internal/config"
	"taskhub/internal/realtime"
	"taskhub/internal/services"
	"taskhub/internal/store"
	"taskhub/internal/validation"

	"github.com/xeipuuv/gojsonschema"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize the task store. MongoDB is optional - without it the
	// engine runs on the in-memory store, which is fine for development
	// but loses state on restart.
	var taskStore store.Store
	if cfg.MongoDB.URI != "" || cfg.MongoDB.Host != "" {
		log.Printf("Initializing MongoDB store (Host: %s, Port: %s, Database: %s)",
			cfg.MongoDB.Host, cfg.MongoDB.Port, cfg.MongoDB.Database)
		mongoStore, err := store.NewMongoStore(cfg.MongoDB)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer mongoStore.Close()
		taskStore = mongoStore
	} else {
		log.Printf("WARNING: MongoDB not configured, using in-memory store")
		taskStore = store.NewMemoryStore()
	}

	// Load the create-task schema (optional; skipped when missing)
	var schema *gojsonschema.Schema
	schema, err = validation.LoadSchema("schemas/task_create_schema.json")
	if err != nil {
		log.Printf("WARNING: Create-task schema not loaded, metadata validation disabled: %v", err)
		schema = nil
	}

	// Initialize services
	hub := realtime.NewHub()
	registry := services.NewRegistry(taskStore, hub)
	claimCoordinator := services.NewClaimCoordinator(registry)
	completionHandler := services.NewCompletionHandler(registry)
	jwtService := services.NewJWTService(cfg.JWT)
	advisorService := services.NewAdvisorService(cfg.OpenAI, services.NewBoardTools(registry))
	if !advisorService.Enabled() {
		log.Printf("OpenAI API key not configured, advisor suggestions disabled")
	}

	// Initialize handlers and routes
	handlers := api.NewHandlers(registry, claimCoordinator, completionHandler,
		advisorService, jwtService, hub, schema)
	router := api.SetupRoutes(handlers, jwtService, cfg.JWT.DevTokenMint)

	// Start server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
