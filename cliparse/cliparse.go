package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/danielhkuo/ticket-vote/qv"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	AdminKeySalt string
	EnvFile      string
	EconomyFile  string
	Economy      Economy

	// PrintAdminKey makes main print the admin key for AdminKeySalt and exit
	PrintAdminKey bool
}

// Economy holds the ledger tunables.
type Economy struct {
	TicketCap     int64         `mapstructure:"ticket_cap"`
	MaxPurchase   int64         `mapstructure:"max_purchase"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// ParseFlags validates flags and sets port number
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("ticket-vote", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL (file path for sqlite)")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKeySalt, "admin-salt", "", "Admin key salt (prefer env)")

	// Files
	fs.StringVar(&cfg.EnvFile, "env-file", "", "Load environment variables from this .env file")
	fs.StringVar(&cfg.EconomyFile, "c", "", "Economy config file (yaml)")

	fs.BoolVar(&cfg.PrintAdminKey, "print-admin-key", false, "Print the admin key and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// .env values never override variables already set in the environment
	if cfg.EnvFile == "" {
		cfg.EnvFile = os.Getenv("ENV_FILE")
	}
	if cfg.EnvFile != "" {
		if err := godotenv.Load(cfg.EnvFile); err != nil {
			return Config{}, fmt.Errorf("loading env file %s: %w", cfg.EnvFile, err)
		}
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	// Secrets - MUST be provided
	if cfg.AdminKeySalt == "" {
		cfg.AdminKeySalt = os.Getenv("ADMIN_KEY_SALT")
	}
	if cfg.AdminKeySalt == "" {
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	}

	if cfg.EconomyFile == "" {
		cfg.EconomyFile = os.Getenv("ECONOMY_FILE")
	}
	economy, err := loadEconomy(cfg.EconomyFile)
	if err != nil {
		return Config{}, err
	}
	cfg.Economy = economy

	return cfg, nil
}

// loadEconomy reads the tunables from path (optional), then TV_* env vars,
// then defaults.
func loadEconomy(path string) (Economy, error) {
	v := viper.New()
	v.SetDefault("ticket_cap", 15)
	v.SetDefault("max_purchase", 100)
	v.SetDefault("sweep_interval", "30s")

	v.SetEnvPrefix("TV")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Economy{}, fmt.Errorf("reading economy config %s: %w", path, err)
		}
	}

	var e Economy
	if err := v.Unmarshal(&e); err != nil {
		return Economy{}, fmt.Errorf("decoding economy config: %w", err)
	}

	if e.TicketCap <= 0 {
		return Economy{}, fmt.Errorf("ticket_cap must be positive, got %d", e.TicketCap)
	}
	if e.MaxPurchase <= 0 || e.MaxPurchase > qv.MaxSafeTickets {
		return Economy{}, fmt.Errorf("max_purchase must be in 1..%d, got %d", qv.MaxSafeTickets, e.MaxPurchase)
	}
	if e.SweepInterval <= 0 {
		return Economy{}, fmt.Errorf("sweep_interval must be positive, got %s", e.SweepInterval)
	}
	return e, nil
}
