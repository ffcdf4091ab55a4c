package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// SeedClient is a balance record registered at startup.
type SeedClient struct {
	ID     uint64
	Cash   decimal.Decimal
	Assets decimal.Decimal
}

type API struct {
	Addr           string
	AllowedOrigins []string
}

type Matching struct {
	// Interval between execute steps in the driver loop. The engine
	// matches one crossing pair per step.
	Interval time.Duration
}

type Config struct {
	API      API
	Matching Matching
	LogFile  string
	Clients  []SeedClient
}

func Default() Config {
	return Config{
		API: API{
			Addr:           ":3000",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Matching: Matching{Interval: 100 * time.Millisecond},
		LogFile:  "data/server.log",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.API.Addr = addr
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.API.AllowedOrigins = strings.Split(origins, ",")
	}
	if iv := os.Getenv("MATCH_INTERVAL_MS"); iv != "" {
		if ms, err := strconv.Atoi(iv); err == nil && ms > 0 {
			cfg.Matching.Interval = time.Duration(ms) * time.Millisecond
		}
	}
	if lf := os.Getenv("LOG_FILE"); lf != "" {
		cfg.LogFile = lf
	}

	// SEED_CLIENTS="1:10000:100,2:5000:50" (id:cash:assets)
	if seeds := os.Getenv("SEED_CLIENTS"); seeds != "" {
		for _, entry := range strings.Split(seeds, ",") {
			parts := strings.Split(entry, ":")
			if len(parts) != 3 {
				continue
			}
			id, err := strconv.ParseUint(parts[0], 10, 64)
			if err != nil {
				continue
			}
			cash, err := decimal.NewFromString(parts[1])
			if err != nil {
				continue
			}
			assets, err := decimal.NewFromString(parts[2])
			if err != nil {
				continue
			}
			cfg.Clients = append(cfg.Clients, SeedClient{ID: id, Cash: cash, Assets: assets})
		}
	}

	return cfg
}
