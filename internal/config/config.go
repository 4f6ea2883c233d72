package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Firestore FirestoreConfig `yaml:"firestore" mapstructure:"firestore"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Bridge    BridgeConfig    `yaml:"bridge" mapstructure:"bridge"`
	Backfill  BackfillConfig  `yaml:"backfill" mapstructure:"backfill"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// FirestoreConfig holds document-store connection settings.
type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id" mapstructure:"project_id"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
}

// DatabaseConfig holds the Supabase Postgres connection settings.
type DatabaseConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BridgeConfig configures the change-mirror bridge.
type BridgeConfig struct {
	// MaxColumnRetries bounds how many schema-drift columns a single change
	// may shed before the write is abandoned.
	MaxColumnRetries int `yaml:"max_column_retries" mapstructure:"max_column_retries"`
	HealthPort       int `yaml:"health_port" mapstructure:"health_port"`
}

// BackfillConfig configures the bulk backfill runner.
type BackfillConfig struct {
	ChunkSize  int     `yaml:"chunk_size" mapstructure:"chunk_size"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ReconcileConfig configures the reconciliation tool.
type ReconcileConfig struct {
	PageSize  int    `yaml:"page_size" mapstructure:"page_size"`
	ExportDir string `yaml:"export_dir" mapstructure:"export_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LILYSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("bridge.max_column_retries", 6)
	v.SetDefault("bridge.health_port", 8090)
	v.SetDefault("backfill.chunk_size", 100)
	v.SetDefault("backfill.rate_per_sec", 20)
	v.SetDefault("reconcile.page_size", 1000)
	v.SetDefault("reconcile.export_dir", ".")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
