// Package params loads node configuration from a .env file and
// environment variables, with sane devnet defaults.
package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Engine struct {
	// Owner and Manager are the capability identities checked at engine
	// entry points. Manager is normally the pool facade's identity.
	Owner   string
	Manager string

	// MinOrderSize is the smallest accepted token-in amount, 18-decimal
	// fixed point, as a decimal string.
	MinOrderSize string
}

type Tokens struct {
	Security         string
	Currency         string
	SecurityDecimals uint8
	CurrencyDecimals uint8
}

type API struct {
	Addr           string
	AllowedOrigins []string
}

type Storage struct {
	Path string
}

type Config struct {
	Engine  Engine
	Tokens  Tokens
	API     API
	Storage Storage
	LogFile string
}

func Default() Config {
	return Config{
		Engine: Engine{
			Owner:        "0x0000000000000000000000000000000000000001",
			Manager:      "0x0000000000000000000000000000000000000002",
			MinOrderSize: "1000000000000000000", // one whole unit
		},
		Tokens: Tokens{
			Security:         "0x0000000000000000000000000000000000000101",
			Currency:         "0x0000000000000000000000000000000000000102",
			SecurityDecimals: 18,
			CurrencyDecimals: 6,
		},
		API: API{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Storage: Storage{Path: "./data/secbook.db"},
		LogFile: "data/secbook.log",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and the
// environment. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	setString(&cfg.Engine.Owner, "ENGINE_OWNER")
	setString(&cfg.Engine.Manager, "ENGINE_MANAGER")
	setString(&cfg.Engine.MinOrderSize, "ENGINE_MIN_ORDER_SIZE")
	setString(&cfg.Tokens.Security, "TOKEN_SECURITY")
	setString(&cfg.Tokens.Currency, "TOKEN_CURRENCY")
	setDecimals(&cfg.Tokens.SecurityDecimals, "TOKEN_SECURITY_DECIMALS")
	setDecimals(&cfg.Tokens.CurrencyDecimals, "TOKEN_CURRENCY_DECIMALS")
	setString(&cfg.API.Addr, "API_ADDR")
	setString(&cfg.Storage.Path, "STORAGE_PATH")
	setString(&cfg.LogFile, "LOG_FILE")

	if origins := os.Getenv("API_ALLOWED_ORIGINS"); origins != "" {
		cfg.API.AllowedOrigins = strings.Split(origins, ",")
	}
	return cfg
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDecimals(dst *uint8, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 8); err == nil {
			*dst = uint8(n)
		}
	}
}
