package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quartzdata/sasarrow/internal/export"
	"github.com/quartzdata/sasarrow/pkg/config"
	"github.com/quartzdata/sasarrow/pkg/engine"
	"github.com/quartzdata/sasarrow/pkg/logger"
	"github.com/quartzdata/sasarrow/pkg/reader"

	// Import engine implementations to register them
	_ "github.com/quartzdata/sasarrow/pkg/engine/arrowfile"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var configFile string
	var engineName string
	var batchSize int
	var logLevel string

	root := &cobra.Command{
		Use:   "sasarrow",
		Short: "sasarrow - streaming SAS7BDAT to Arrow bridge",
		Long: `sasarrow reads column-oriented statistical table files in fixed-size row
batches through a pluggable decoding engine and exposes each batch as a
decoded, semantically-typed Arrow record.`,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML configuration file (optional)")
	root.PersistentFlags().StringVar(&engineName, "engine", "arrowfile", "Decoding engine to use")
	root.PersistentFlags().IntVar(&batchSize, "batch-size", 0, "Rows per batch (0 = engine default)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sasarrow v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "engines",
		Short: "List registered decoding engines",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range engine.List() {
				fmt.Printf("  - %s\n", name)
			}
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "info <file>",
		Short: "Show file-level counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(configFile, args[0], engineName, batchSize, logLevel)
			if err != nil {
				return err
			}
			return withReader(cfg, func(r *reader.Reader) error {
				return printJSON(r.Info())
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "schema <file>",
		Short: "Show the resolved column schema without reading any batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(configFile, args[0], engineName, batchSize, logLevel)
			if err != nil {
				return err
			}
			return withReader(cfg, func(r *reader.Reader) error {
				sch, err := r.Schema()
				if err != nil {
					return err
				}
				return printJSON(sch)
			})
		},
	})

	var headRows int
	headCmd := &cobra.Command{
		Use:   "head <file>",
		Short: "Preview the first rows as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(configFile, args[0], engineName, batchSize, logLevel)
			if err != nil {
				return err
			}
			return withReader(cfg, func(r *reader.Reader) error {
				return printHead(r, headRows)
			})
		},
	}
	headCmd.Flags().IntVarP(&headRows, "rows", "n", 10, "Number of rows to preview")
	root.AddCommand(headCmd)

	var outFile, format string
	exportCmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Stream all batches to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(configFile, args[0], engineName, batchSize, logLevel)
			if err != nil {
				return err
			}
			return runExport(cfg, outFile, export.Format(format))
		},
	}
	exportCmd.Flags().StringVarP(&outFile, "output", "o", "", "Output file (required)")
	exportCmd.Flags().StringVar(&format, "format", "jsonl", "Output format (jsonl, ipc)")
	_ = exportCmd.MarkFlagRequired("output")
	root.AddCommand(exportCmd)

	initCmd := &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write a default configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(args[0], config.NewReaderConfig("data.arrow"))
		},
	}
	root.AddCommand(initCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildConfig merges the optional config file with command-line flags; flags
// win where both are set.
func buildConfig(configFile, path, engineName string, batchSize int, logLevel string) (*config.ReaderConfig, error) {
	cfg := config.NewReaderConfig(path)
	if configFile != "" {
		if err := config.Load(configFile, cfg); err != nil {
			return nil, err
		}
		cfg.Path = path
	}
	if engineName != "" {
		cfg.Engine = engineName
	}
	if batchSize != 0 {
		cfg.BatchSize = batchSize
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withReader opens a reader per the config, runs fn, and closes the reader
// deterministically at scope exit.
func withReader(cfg *config.ReaderConfig, fn func(*reader.Reader) error) error {
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding}); err != nil {
		return err
	}
	log := logger.Get().With(zap.String("engine", cfg.Engine))

	eng, err := engine.Create(cfg.Engine)
	if err != nil {
		return err
	}

	r, err := reader.Open(eng, cfg.Path, uint32(cfg.BatchSize), log)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Warn("failed to close reader", zap.Error(err))
		}
	}()

	return fn(r)
}

func printJSON(v interface{}) error {
	data, err := gojson.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printHead(r *reader.Reader, n int) error {
	sch, err := r.Schema()
	if err != nil {
		return err
	}

	table := tablewriter.NewTable(os.Stdout)
	table.Header(sch.Names())

	it := r.Iter()
	remaining := n
	for remaining > 0 {
		batch, err := it.Next()
		if err != nil {
			return err
		}
		if batch == nil {
			break
		}

		rows := batch.Rows()
		for row, ok := rows.Next(); ok && remaining > 0; row, ok = rows.Next() {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = v.String()
			}
			if err := table.Append(cells); err != nil {
				return err
			}
			remaining--
		}
	}

	return table.Render()
}

func runExport(cfg *config.ReaderConfig, outFile string, format export.Format) error {
	return withReader(cfg, func(r *reader.Reader) error {
		out, err := os.Create(outFile)
		if err != nil {
			return fmt.Errorf("create %s: %w", outFile, err)
		}
		defer func() {
			_ = out.Close()
		}()

		ctx := context.Background()
		start := time.Now()
		res, err := export.Run(ctx, r, out, format, logger.Get())
		if err != nil {
			return err
		}

		fmt.Printf("exported %d rows in %d batches to %s (%s)\n",
			res.Rows, res.Batches, outFile, time.Since(start).Round(time.Millisecond))
		return nil
	})
}
