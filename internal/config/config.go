package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of the storefront backend.
type Config struct {
	Env      string   `yaml:"env" env:"APP_ENV" env-default:"development"`
	HTTP     HTTP     `yaml:"http"`
	Database Database `yaml:"database"`
	Chain    Chain    `yaml:"chain"`
	IPFS     IPFS     `yaml:"ipfs"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Auth     Auth     `yaml:"auth"`
	Log      Log      `yaml:"log"`
	Resolver Resolver `yaml:"resolver"`
}

type HTTP struct {
	Port            string        `yaml:"port" env:"APP_PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type Database struct {
	URL         string `yaml:"url" env:"DATABASE_URL" env-required:"true"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"DATABASE_AUTO_MIGRATE" env-default:"true"`
}

// Chain configures the EVM RPC connection and the signing wallet.
// PrivateKey may be empty, in which case every write is rejected.
type Chain struct {
	RPCURL         string        `yaml:"rpc_url" env:"CHAIN_RPC_URL" env-default:"http://localhost:8545"`
	ChainID        int64         `yaml:"chain_id" env:"CHAIN_ID" env-default:"8453"`
	FactoryAddress string        `yaml:"factory_address" env:"CHAIN_FACTORY_ADDRESS"`
	PrivateKey     string        `yaml:"private_key" env:"CHAIN_PRIVATE_KEY"`
	ReceiptTimeout time.Duration `yaml:"receipt_timeout" env:"CHAIN_RECEIPT_TIMEOUT" env-default:"2m"`
	PollInterval   time.Duration `yaml:"poll_interval" env:"CHAIN_POLL_INTERVAL" env-default:"2s"`
}

type IPFS struct {
	GatewayURL   string        `yaml:"gateway_url" env:"IPFS_GATEWAY_URL" env-default:"https://gateway.pinata.cloud/ipfs"`
	PinURL       string        `yaml:"pin_url" env:"IPFS_PIN_URL" env-default:"https://api.pinata.cloud"`
	PinJWT       string        `yaml:"pin_jwt" env:"IPFS_PIN_JWT"`
	Timeout      time.Duration `yaml:"timeout" env:"IPFS_TIMEOUT" env-default:"20s"`
	CacheTTL     time.Duration `yaml:"cache_ttl" env:"IPFS_CACHE_TTL" env-default:"1h"`
	MaxEntrySize int           `yaml:"max_entry_size" env:"IPFS_CACHE_MAX_ENTRY_SIZE" env-default:"65536"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	NonceTTL time.Duration `yaml:"nonce_ttl" env:"AUTH_NONCE_TTL" env-default:"5m"`
}

// Kafka publishing is disabled when Brokers is empty.
type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"storefront-events"`
}

type Auth struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"AUTH_JWT_SECRET" env-required:"true"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"AUTH_SESSION_TTL" env-default:"24h"`
	Domain     string        `yaml:"domain" env:"AUTH_DOMAIN" env-default:"storefront"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

type Resolver struct {
	Concurrency int `yaml:"concurrency" env:"RESOLVER_CONCURRENCY" env-default:"8"`
}

// Load reads the YAML file at path, when set, and then overlays environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}

	configPath := os.Getenv("STOREFRONT_CONFIG_PATH")
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			log.Fatalf("failed to find config file: %v\n", err)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("failed to read config: %v", err)
	}
	return cfg
}
