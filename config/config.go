package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// Redis configuration (optional; empty disables the pub/sub sink)
	RedisURL string

	// Player configuration
	StartingBalance int64

	// Bot pool configuration
	BotPoolSize        int
	BotStartingBalance int64

	// Roulette configuration
	RouletteCapacity      int
	RouletteMultiplier    int64
	RouletteWaitWindow    time.Duration // auto-lock deadline from room creation or first seat
	RouletteFillRetry     time.Duration // retry delay when the bot pool runs short
	RouletteFillFromFirst bool          // deadline runs from the first human seat instead of creation

	// Dice duel configuration
	DiceDuelTurnTimeout    time.Duration
	DiceDuelDamageDivisor  int64 // damage per lost round = stake / divisor
	DiceDuelStartingRotate bool  // rotate the starting seat each duel round

	// Room lifecycle configuration
	ResetDwell time.Duration // minimum time after finish before self-service reset

	// Maintenance poller configuration (0 disables the poller)
	PollInterval time.Duration

	// User IDs allowed to force-reset, preselect winners and archive rooms
	AdminUserIDs []int64

	// Discord announcements (optional)
	DiscordToken     string
	DiscordChannelID string

	// Environment
	Environment string // "development" or "production"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		// Defaults
		StartingBalance:       100000,
		BotPoolSize:           24,
		BotStartingBalance:    10000000,
		RouletteCapacity:      12,
		RouletteMultiplier:    10,
		RouletteWaitWindow:    60 * time.Second,
		RouletteFillRetry:     15 * time.Second,
		RouletteFillFromFirst: os.Getenv("ROULETTE_FILL_FROM_FIRST_SEAT") == "true",

		DiceDuelTurnTimeout:   30 * time.Second,
		DiceDuelDamageDivisor: 5,

		ResetDwell:   10 * time.Second,
		PollInterval: 0,

		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DiscordChannelID: os.Getenv("DISCORD_CHANNEL_ID"),

		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if balance := os.Getenv("STARTING_BALANCE"); balance != "" {
		if parsed, err := strconv.ParseInt(balance, 10, 64); err == nil {
			config.StartingBalance = parsed
		}
	}
	if poolSize := os.Getenv("BOT_POOL_SIZE"); poolSize != "" {
		if parsed, err := strconv.Atoi(poolSize); err == nil {
			config.BotPoolSize = parsed
		}
	}
	if botBalance := os.Getenv("BOT_STARTING_BALANCE"); botBalance != "" {
		if parsed, err := strconv.ParseInt(botBalance, 10, 64); err == nil {
			config.BotStartingBalance = parsed
		}
	}
	if rotate := os.Getenv("DICE_DUEL_ROTATE_STARTER"); rotate != "" {
		config.DiceDuelStartingRotate = rotate == "true"
	}
	if multiplier := os.Getenv("ROULETTE_MULTIPLIER"); multiplier != "" {
		if parsed, err := strconv.ParseInt(multiplier, 10, 64); err == nil {
			config.RouletteMultiplier = parsed
		}
	}
	if window := os.Getenv("ROULETTE_WAIT_SECONDS"); window != "" {
		if parsed, err := strconv.Atoi(window); err == nil {
			config.RouletteWaitWindow = time.Duration(parsed) * time.Second
		}
	}
	if retry := os.Getenv("ROULETTE_FILL_RETRY_SECONDS"); retry != "" {
		if parsed, err := strconv.Atoi(retry); err == nil {
			config.RouletteFillRetry = time.Duration(parsed) * time.Second
		}
	}
	if timeout := os.Getenv("DICE_DUEL_TURN_SECONDS"); timeout != "" {
		if parsed, err := strconv.Atoi(timeout); err == nil {
			config.DiceDuelTurnTimeout = time.Duration(parsed) * time.Second
		}
	}
	if divisor := os.Getenv("DICE_DUEL_DAMAGE_DIVISOR"); divisor != "" {
		if parsed, err := strconv.ParseInt(divisor, 10, 64); err == nil && parsed > 0 {
			config.DiceDuelDamageDivisor = parsed
		}
	}
	if dwell := os.Getenv("RESET_DWELL_SECONDS"); dwell != "" {
		if parsed, err := strconv.Atoi(dwell); err == nil {
			config.ResetDwell = time.Duration(parsed) * time.Second
		}
	}
	if poll := os.Getenv("POLL_INTERVAL_SECONDS"); poll != "" {
		if parsed, err := strconv.Atoi(poll); err == nil {
			config.PollInterval = time.Duration(parsed) * time.Second
		}
	}

	// Parse admin user IDs
	if adminIDs := os.Getenv("ADMIN_USER_IDS"); adminIDs != "" {
		for _, idStr := range strings.Split(adminIDs, ",") {
			idStr = strings.TrimSpace(idStr)
			if idStr == "" {
				continue
			}
			if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
				config.AdminUserIDs = append(config.AdminUserIDs, id)
			}
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}
