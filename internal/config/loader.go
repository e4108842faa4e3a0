package config

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/jmarlowe/leadpipe/internal/db"
)

// Config is the full runtime configuration for the server and worker.
type Config struct {
	Database db.Config
	Server   ServerConfig
	Redis    RedisConfig
	Import   ImportConfig
	Authz    AuthzConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	AllowOrigins []string
}

// RedisConfig locates the task queue broker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ImportConfig bounds upload processing.
type ImportConfig struct {
	// MaxFileSize caps accepted upload payloads in bytes.
	MaxFileSize int64
	// BatchTimeout bounds one batch's wall-clock processing time.
	BatchTimeout time.Duration
	// WorkerConcurrency is the number of batches processed in parallel.
	WorkerConcurrency int
	MigrationsPath    string
}

// AuthzConfig locates the casbin model and policy files.
type AuthzConfig struct {
	ModelPath  string
	PolicyPath string
}

// Default returns the configuration used when no config file or environment
// overrides are present.
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:         ":8080",
			AllowOrigins: []string{"http://localhost:5173"},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Import: ImportConfig{
			MaxFileSize:       10 << 20,
			BatchTimeout:      10 * time.Minute,
			WorkerConcurrency: 4,
			MigrationsPath:    "migrations",
		},
		Authz: AuthzConfig{
			ModelPath:  "configs/rbac_model.conf",
			PolicyPath: "configs/rbac_policy.csv",
		},
	}
}

// Load reads config.yaml from configPath, layering environment overrides
// (LEADPIPE_DATABASE_HOST and friends) over file values over defaults.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("LEADPIPE")

	keys := []string{
		"database.host", "database.port", "database.user",
		"database.password", "database.dbname", "database.sslmode",
		"server.addr", "server.allow_origins",
		"redis.addr", "redis.password", "redis.db",
		"import.max_file_size", "import.batch_timeout",
		"import.worker_concurrency", "import.migrations_path",
		"authz.model_path", "authz.policy_path",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		logrus.Info("no config.yaml found, using defaults and env vars")
	} else {
		logrus.WithField("file", v.ConfigFileUsed()).Info("loaded config")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allow_origins") {
		cfg.Server.AllowOrigins = v.GetStringSlice("server.allow_origins")
	}
	if v.IsSet("redis.addr") {
		cfg.Redis.Addr = v.GetString("redis.addr")
	}
	if v.IsSet("redis.password") {
		cfg.Redis.Password = v.GetString("redis.password")
	}
	if v.IsSet("redis.db") {
		cfg.Redis.DB = v.GetInt("redis.db")
	}
	if v.IsSet("import.max_file_size") {
		cfg.Import.MaxFileSize = v.GetInt64("import.max_file_size")
	}
	if v.IsSet("import.batch_timeout") {
		cfg.Import.BatchTimeout = v.GetDuration("import.batch_timeout")
	}
	if v.IsSet("import.worker_concurrency") {
		cfg.Import.WorkerConcurrency = v.GetInt("import.worker_concurrency")
	}
	if v.IsSet("import.migrations_path") {
		cfg.Import.MigrationsPath = v.GetString("import.migrations_path")
	}
	if v.IsSet("authz.model_path") {
		cfg.Authz.ModelPath = v.GetString("authz.model_path")
	}
	if v.IsSet("authz.policy_path") {
		cfg.Authz.PolicyPath = v.GetString("authz.policy_path")
	}

	return cfg, nil
}
