package main

import (
	"fmt"
	"os"

	"github.com/gopsql/db"
	"github.com/sheltermanager/asmdb"
	"github.com/sheltermanager/asmdb/drivers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "asmdb",
	Short: "Query the shelter database and generate documents",
	Long: `asmdb runs queries and statements against the shelter database and
fills document templates with tags.

The database is configured with a YAML file (--config) and ASM3_DB_*
environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "asmdb.yaml", "path of the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every statement")

	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "maximum number of rows")
	queryCmd.Flags().StringVar(&queryDistinct, "distinct", "", "skip rows with a value of this column seen before")
	queryCmd.Flags().DurationVar(&queryCacheAge, "cache", 0, "cache the result for this long")
	execCmd.Flags().BoolVar(&execDBUpdate, "db-update", false, "run even if the database is locked")
	renderCmd.Flags().StringVar(&renderTags, "tags", "", "YAML file of tags")
	renderCmd.Flags().BoolVar(&renderPlain, "plain", false, "substitute <<TAG>> without escaping")
	renderCmd.Flags().StringVar(&renderImage, "image", "", "image for ODT placeholder images")
	renderCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file, stdout if empty")
	generateCmd.Flags().StringVar(&generateKind, "kind", "animal", "animal, person, movement, donation or incident")
	generateCmd.Flags().Int64Var(&generateID, "id", 0, "ID of the record")
	generateCmd.Flags().Int64Var(&generateTemplate, "template", 0, "ID of the template")
	generateCmd.Flags().StringVar(&generateUser, "user", "", "user generating the document")
	generateCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file, stdout if empty")

	rootCmd.AddCommand(queryCmd, execCmd, nextIDCmd, explainCmd, renderCmd, generateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDatabase opens the database of the config file. The returned
// function closes the connection and the query cache.
func openDatabase() (*asmdb.Database, func(), error) {
	cfg, err := asmdb.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	conn, dialect, err := drivers.Open(*cfg)
	if err != nil {
		return nil, nil, err
	}
	options := []interface{}{conn, dialect, cfg, asmdb.TableAuditor{}, zapLogger{logger.Sugar()}}
	closers := []func(){func() { closeConn(conn) }}
	if cfg.QueryCachePath != "" {
		cache, err := asmdb.OpenDiskCache(cfg.QueryCachePath)
		if err != nil {
			closeConn(conn)
			return nil, nil, err
		}
		options = append(options, cache)
		closers = append(closers, func() { cache.Close() })
	}
	logger.Debug("database opened", zap.String("name", cfg.Name), zap.String("driver", cfg.Driver))
	return asmdb.New(cfg.Name, options...), func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

func closeConn(conn db.DB) {
	conn.Close()
}
