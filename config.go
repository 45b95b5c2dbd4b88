package asmdb

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	// Config configures a database and its diagnostics. It is passed to New
	// as an option and to drivers.Open.
	Config struct {
		// Name of the database, used in ID cache keys, query cache keys
		// and the exec log path.
		Name string `yaml:"name"`
		// Driver is one of "pgx" (default), "pq", "gopg" or "sqlite".
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
		// Timeout is handed to the driver, this package does not enforce
		// it.
		Timeout time.Duration `yaml:"timeout"`
		// Timezone is the offset of the database from UTC in hours.
		Timezone float64 `yaml:"timezone"`
		// Locked makes writes no-ops, see Lock.
		Locked         bool `yaml:"locked"`
		HasASM2PKTable bool `yaml:"has_asm2_pk_table"`
		// ExecLog is the path of a file every write is appended to.
		// "{database}" is replaced with the database name.
		ExecLog            string        `yaml:"exec_log"`
		CacheCommonQueries bool          `yaml:"cache_common_queries"`
		QueryCachePath     string        `yaml:"query_cache_path"`
		ExplainQueries     bool          `yaml:"explain_queries"`
		TimeQueries        bool          `yaml:"time_queries"`
		TimeLogOver        time.Duration `yaml:"time_log_over"`

		Templates TemplateConfig `yaml:"templates"`
	}

	// TemplateConfig selects where document templates are loaded from.
	TemplateConfig struct {
		// Store is "database" (default) or "s3".
		Store    string `yaml:"store"`
		Bucket   string `yaml:"bucket"`
		Region   string `yaml:"region"`
		Endpoint string `yaml:"endpoint"`
		// AccessKey and SecretKey are optional, the AWS default
		// credential chain is used without them.
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
	}
)

func DefaultConfig() *Config {
	return &Config{
		Name:               "asm",
		Driver:             "pgx",
		Timeout:            30 * time.Second,
		CacheCommonQueries: true,
		TimeLogOver:        2 * time.Second,
		Templates: TemplateConfig{
			Store: "database",
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults. A missing file
// gives the defaults. ASM3_DB_* environment variables override the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ASM3_DB_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv("ASM3_DB_DRIVER"); v != "" {
		c.Driver = v
	}
	if v := os.Getenv("ASM3_DB_DSN"); v != "" {
		c.DSN = v
	}
	if v := os.Getenv("ASM3_DB_EXEC_LOG"); v != "" {
		c.ExecLog = v
	}
	if v := os.Getenv("ASM3_DB_QUERY_CACHE"); v != "" {
		c.QueryCachePath = v
	}
	if v, err := strconv.ParseBool(os.Getenv("ASM3_DB_LOCKED")); err == nil {
		c.Locked = v
	}
	if v, err := strconv.ParseBool(os.Getenv("ASM3_DB_CACHE_COMMON_QUERIES")); err == nil {
		c.CacheCommonQueries = v
	}
	if v := os.Getenv("ASM3_DB_TEMPLATE_BUCKET"); v != "" {
		c.Templates.Store = "s3"
		c.Templates.Bucket = v
	}
}
