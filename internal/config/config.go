package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "SALES"

type Config struct {
	App       AppConfig
	Storage   StorageConfig
	MySQL     MySQLConfig
	Redis     RedisConfig
	Purchase  PurchaseConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
	Log       LogConfig
}

type AppConfig struct {
	Name     string
	Env      string
	HTTPAddr string
	GRPCAddr string
	// ShutdownTimeout bounds graceful shutdown of both servers.
	ShutdownTimeout time.Duration
}

// StorageConfig selects where ledgers, journal and locks live.
//
//	memory: everything in process
//	mysql:  catalog, ledgers and journal in MySQL, locks in Redis when configured
//	redis:  ledgers and locks in Redis, catalog and journal in MySQL
type StorageConfig struct {
	Backend string
	// Seed loads the demo catalog on startup. MySQL rows and Redis counters
	// that already exist are left alone.
	Seed bool
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	MarkerTTL time.Duration
}

type PurchaseConfig struct {
	RequestLockTTL      time.Duration
	CompensationTimeout time.Duration
	JournalPageSize     int
}

type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

type TelemetryConfig struct {
	Enabled       bool
	Endpoint      string
	Insecure      bool
	SamplingRatio float64
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

var backends = []string{"memory", "mysql", "redis"}

// Load reads configuration from, highest priority first:
//  1. environment variables with the SALES_ prefix (SALES_MYSQL_DSN)
//  2. config.yaml in the working directory or /etc/sales
//  3. built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/sales")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:            v.GetString("app.name"),
			Env:             v.GetString("app.env"),
			HTTPAddr:        v.GetString("app.http_addr"),
			GRPCAddr:        v.GetString("app.grpc_addr"),
			ShutdownTimeout: v.GetDuration("app.shutdown_timeout"),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(v.GetString("storage.backend")),
			Seed:    v.GetBool("storage.seed"),
		},
		MySQL: MySQLConfig{
			DSN:             v.GetString("mysql.dsn"),
			MaxOpenConns:    v.GetInt("mysql.max_open_conns"),
			MaxIdleConns:    v.GetInt("mysql.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("mysql.conn_max_lifetime"),
			Migrate:         v.GetBool("mysql.migrate"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("redis.addr"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			PoolSize:  v.GetInt("redis.pool_size"),
			MarkerTTL: v.GetDuration("redis.marker_ttl"),
		},
		Purchase: PurchaseConfig{
			RequestLockTTL:      v.GetDuration("purchase.request_lock_ttl"),
			CompensationTimeout: v.GetDuration("purchase.compensation_timeout"),
			JournalPageSize:     v.GetInt("purchase.journal_page_size"),
		},
		Kafka: KafkaConfig{
			Enabled:      v.GetBool("kafka.enabled"),
			Brokers:      splitList(v.GetStringSlice("kafka.brokers")),
			Topic:        v.GetString("kafka.topic"),
			WriteTimeout: v.GetDuration("kafka.write_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:       v.GetBool("telemetry.enabled"),
			Endpoint:      v.GetString("telemetry.endpoint"),
			Insecure:      v.GetBool("telemetry.insecure"),
			SamplingRatio: v.GetFloat64("telemetry.sampling_ratio"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sales-orchestrator")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_addr", ":8080")
	v.SetDefault("app.grpc_addr", ":9090")
	v.SetDefault("app.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.seed", true)

	v.SetDefault("mysql.dsn", "root:password@tcp(localhost:3306)/sales?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 100)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.migrate", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("redis.marker_ttl", 7*24*time.Hour)

	v.SetDefault("purchase.request_lock_ttl", 30*time.Second)
	v.SetDefault("purchase.compensation_timeout", 10*time.Second)
	v.SetDefault("purchase.journal_page_size", 100)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "sales.events")
	v.SetDefault("kafka.write_timeout", 5*time.Second)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sampling_ratio", 1.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
}

// splitList accepts both a YAML list and a comma separated env value.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) validate() error {
	var errs []error
	if !slices.Contains(backends, c.Storage.Backend) {
		errs = append(errs, fmt.Errorf("storage.backend must be one of %v, got %q", backends, c.Storage.Backend))
	}
	if c.Storage.Backend != "memory" && c.MySQL.DSN == "" {
		errs = append(errs, errors.New("mysql.dsn is required for the mysql and redis backends"))
	}
	if c.Storage.Backend == "redis" && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required for the redis backend"))
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		errs = append(errs, errors.New("kafka.brokers and kafka.topic are required when kafka is enabled"))
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sampling_ratio must be within [0, 1], got %v", c.Telemetry.SamplingRatio))
	}
	if c.Purchase.RequestLockTTL <= 0 || c.Purchase.CompensationTimeout <= 0 {
		errs = append(errs, errors.New("purchase timeouts must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
