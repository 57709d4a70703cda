package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port           string        `env:"PORT,            default=8080"`
	Env            string        `env:"ENV,             default=development"`
	LogLevel       string        `env:"LOG_LEVEL,       default=info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT, default=10s"`
	AuditWorkers   int           `env:"AUDIT_WORKERS,   default=4"`

	Session SessionConfig
	Wallet  WalletConfig
	Demo    DemoConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

type SessionConfig struct {
	JWTSecret  string        `env:"JWT_SECRET"`
	Issuer     string        `env:"JWT_ISSUER,  default=gigmarket-identity"`
	TokenTTL   time.Duration `env:"TOKEN_TTL,   default=24h"`
	BcryptCost int           `env:"BCRYPT_COST, default=10"`
}

type WalletConfig struct {
	RPCURL           string        `env:"ETH_RPC_URL"`
	ChallengeTTL     time.Duration `env:"WALLET_CHALLENGE_TTL,     default=5m"`
	RequireChallenge bool          `env:"WALLET_REQUIRE_CHALLENGE, default=true"`
	SigninDomain     string        `env:"SIGNIN_DOMAIN,            default=gigmarket"`
}

// DemoConfig holds the fixed accounts accepted when demo mode is on.
type DemoConfig struct {
	Enabled    bool        `env:"DEMO_MODE, default=false"`
	Client     DemoAccount `env:", prefix=DEMO_CLIENT_"`
	Freelancer DemoAccount `env:", prefix=DEMO_FREELANCER_"`
}

type DemoAccount struct {
	Email    string `env:"EMAIL"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=gigmarket"`
}

// RedisConfig.Addr accepts a comma-separated node list for cluster or
// sentinel deployments.
type RedisConfig struct {
	Addr       string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password   string `env:"REDIS_PASSWORD"`
	DB         int    `env:"REDIS_DB,       default=0"`
	MasterName string `env:"REDIS_MASTER_NAME"`
}

// IsDevelopment reports whether the service runs with ENV=development.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Session.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Session.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.Wallet.ChallengeTTL <= 0 {
		errs = append(errs, errors.New("WALLET_CHALLENGE_TTL must be positive"))
	}
	if c.Demo.Enabled {
		if c.Demo.Client.Email == "" || c.Demo.Client.Password == "" {
			errs = append(errs, errors.New("DEMO_MODE requires DEMO_CLIENT_EMAIL and DEMO_CLIENT_PASSWORD"))
		}
		if c.Demo.Freelancer.Email == "" || c.Demo.Freelancer.Password == "" {
			errs = append(errs, errors.New("DEMO_MODE requires DEMO_FREELANCER_EMAIL and DEMO_FREELANCER_PASSWORD"))
		}
	}
	return errors.Join(errs...)
}

// Load reads configuration from environment variables using go-envconfig. In
// development a .env file in the working directory is loaded first; variables
// already set in the environment win.
func Load(ctx context.Context) (*Config, error) {
	if env := os.Getenv("ENV"); env == "" || strings.EqualFold(env, "development") {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load .env: %w", err)
		}
	}
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
