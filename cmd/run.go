package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"gamehall/config"
	"gamehall/database"
	"gamehall/events"
	"gamehall/notifier"
	"gamehall/repository"
	"gamehall/service"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Println("Starting gamehall engine...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Database connection established successfully")

	// Initialize event bus
	eventBus := events.NewBus()

	// Attach the Redis pub/sub sink when configured
	var redisSink *events.RedisSink
	if cfg.RedisURL != "" {
		log.Println("Connecting to Redis...")
		redisSink, err = events.NewRedisSink(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		redisSink.Attach(eventBus)
		log.Println("Redis event sink attached")
	}

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Initialize services
	clock := service.NewClock()
	userService := service.NewUserService(uowFactory, cfg)
	roomService := service.NewRoomService(uowFactory, cfg, clock)
	log.Println("Services initialized successfully")

	// Provision the bot pool used for roulette auto-fill
	if err := userService.EnsureBots(ctx); err != nil {
		return fmt.Errorf("failed to provision bot pool: %w", err)
	}

	// Start the optional maintenance poller
	var stopPoller func()
	if cfg.PollInterval > 0 {
		poller := service.NewMaintenancePoller(roomService, uowFactory, clock, cfg.PollInterval)
		stopPoller = poller.Start(ctx)
	}

	// Initialize the Discord announcer when configured
	var announcer *notifier.Discord
	if cfg.DiscordToken != "" && cfg.DiscordChannelID != "" {
		log.Println("Initializing Discord announcer...")
		announcer, err = notifier.NewDiscord(notifier.Config{
			Token:     cfg.DiscordToken,
			ChannelID: cfg.DiscordChannelID,
		}, eventBus)
		if err != nil {
			return fmt.Errorf("failed to initialize Discord announcer: %w", err)
		}
		log.Println("Discord announcer initialized successfully")
	}

	// Wait for context cancellation
	log.Printf("Engine is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	// Cleanup resources
	log.Println("Shutting down...")

	if stopPoller != nil {
		stopPoller()
	}

	if announcer != nil {
		if err := announcer.Close(); err != nil {
			log.Printf("Error closing Discord announcer: %v", err)
		}
	}

	if redisSink != nil {
		if err := redisSink.Close(); err != nil {
			log.Printf("Error closing Redis event sink: %v", err)
		}
	}

	// Give cleanup operations time to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close database connection
	log.Println("Closing database connection...")
	db.Close()

	select {
	case <-shutdownCtx.Done():
		log.Println("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Println("Shutdown completed")
	}

	return nil
}
