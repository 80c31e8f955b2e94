package config

import (
	"flag"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultServerAddress = ":8080"
	defaultDatabaseDSN   = ""
	defaultLogLevel      = "debug"
	defaultSweepInterval = time.Hour
)

type Config struct {
	ServerAddr    string
	DatabaseDSN   string
	LogLevel      string
	TokenKey      string
	SweepInterval time.Duration
}

var (
	once      sync.Once
	singleton *Config
)

// New returns new Config. It parses command line and environment variables only once.
func New() (*Config, error) {
	once.Do(func() {
		// .env is optional, env variables win over it either way
		_ = godotenv.Load()

		cfg := Config{}

		// initialize flags
		flag.StringVar(&cfg.ServerAddr, "a", defaultServerAddress, "cafemart server address")
		flag.StringVar(&cfg.DatabaseDSN, "d", defaultDatabaseDSN, "cafemart database DSN")
		flag.StringVar(&cfg.LogLevel, "l", defaultLogLevel, "log level")
		flag.StringVar(&cfg.TokenKey, "k", "", "auth token key in hex")
		flag.DurationVar(&cfg.SweepInterval, "s", defaultSweepInterval, "points expiry sweep interval")

		flag.Parse()

		// if environment variable is set, then using it
		if runAddrEnv := os.Getenv("RUN_ADDRESS"); runAddrEnv != "" {
			cfg.ServerAddr = runAddrEnv
		}
		if dataBaseURIEnv := os.Getenv("DATABASE_URI"); dataBaseURIEnv != "" {
			cfg.DatabaseDSN = dataBaseURIEnv
		}
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			cfg.LogLevel = logLevelEnv
		}
		if tokenKeyEnv := os.Getenv("TOKEN_KEY"); tokenKeyEnv != "" {
			cfg.TokenKey = tokenKeyEnv
		}
		if sweepIntervalEnv := os.Getenv("SWEEP_INTERVAL"); sweepIntervalEnv != "" {
			if d, err := time.ParseDuration(sweepIntervalEnv); err == nil {
				cfg.SweepInterval = d
			}
		}

		singleton = &cfg
	})

	return singleton, nil
}
