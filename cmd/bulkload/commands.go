// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/tributary/internal/config"
	"github.com/tomtom215/tributary/internal/database"
	bulkimport "github.com/tomtom215/tributary/internal/import"
	"github.com/tomtom215/tributary/internal/logging"
	"github.com/tomtom215/tributary/internal/models"
)

// errRowsFailed makes the process exit non-zero after a partial load.
var errRowsFailed = errors.New("some rows failed to import")

type app struct {
	out        io.Writer
	loadConfig func() (*config.Config, error)
	cfg        *config.Config
}

type importFlags struct {
	table     string
	keys      []string
	date      string
	metrics   []string
	source    string
	resume    bool
	batchSize int
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "bulkload",
		Short:         "Import historical CSV data into Tributary tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logging.Init(logging.Config{
				Level:     cfg.Logging.Level,
				Format:    cfg.Logging.Format,
				Caller:    cfg.Logging.Caller,
				Timestamp: true,
				Service:   "bulkload",
				Output:    cmd.ErrOrStderr(),
			})
			a.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.AddCommand(newImportCmd(a), newProgressCmd(a), newResetCmd(a))
	return root
}

func newImportCmd(a *app) *cobra.Command {
	var f importFlags
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Load a CSV file into a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.runImport(cmd.Context(), args[0], f)
			if err != nil {
				logging.Error().Err(err).Str("file", args[0]).Msg("Bulk load failed")
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&f.table, "table", "t", "", "destination table")
	cmd.Flags().StringSliceVarP(&f.keys, "key", "k", nil, "key columns (required for unregistered tables)")
	cmd.Flags().StringVar(&f.date, "date", "", "column holding the record date")
	cmd.Flags().StringSliceVar(&f.metrics, "metrics", nil, "numeric columns")
	cmd.Flags().StringVar(&f.source, "source", "", "source kind recorded on each row (e.g. commerce, gsc)")
	cmd.Flags().BoolVar(&f.resume, "resume", false, "continue from saved progress for the same table and file")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "rows per batch (default IMPORT_BATCH_SIZE)")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func newProgressCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Print the saved progress of the last load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			progress, closeFn, err := openProgress(a.cfg.Import)
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := progress.Load(cmd.Context())
			if err != nil {
				return err
			}
			if stats == nil {
				_, err = fmt.Fprintln(a.out, "no saved progress")
				return err
			}
			return a.printJSON(stats.ToSummary(false))
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard saved progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			progress, closeFn, err := openProgress(a.cfg.Import)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := progress.Clear(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, "progress cleared")
			return err
		},
	}
}

func (a *app) runImport(ctx context.Context, path string, f importFlags) error {
	mapping := bulkimport.Mapping{
		Table:      f.table,
		Key:        f.keys,
		DateColumn: f.date,
		Metrics:    f.metrics,
	}
	if f.source != "" {
		kind, err := models.ParseSourceKind(f.source)
		if err != nil {
			return err
		}
		mapping.Source = kind
	}

	src, err := bulkimport.OpenCSV(path, mapping)
	if err != nil {
		return err
	}
	defer src.Close()

	db, err := database.New(&a.cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing database")
		}
	}()

	progress, closeFn, err := openProgress(a.cfg.Import)
	if err != nil {
		return err
	}
	defer closeFn()

	batchSize := f.batchSize
	if batchSize <= 0 {
		batchSize = a.cfg.Import.BatchSize
	}
	loader := bulkimport.NewLoader(database.NewWriter(db), db, progress, batchSize)

	stats, err := loader.Load(ctx, src, bulkimport.LoadOptions{Resume: f.resume})
	if stats != nil {
		if perr := a.printJSON(stats.ToSummary(false)); perr != nil && err == nil {
			err = perr
		}
	}
	if err != nil {
		return err
	}
	if !stats.Success() {
		return fmt.Errorf("%w: %d of %d", errRowsFailed, stats.Failed, stats.Processed)
	}
	return nil
}

// openProgress uses Badger when a progress path is configured. Without one,
// progress lives only as long as the process and --resume has no effect.
func openProgress(cfg config.ImportConfig) (bulkimport.ProgressTracker, func(), error) {
	if cfg.ProgressPath == "" {
		return bulkimport.NewInMemoryProgress(), func() {}, nil
	}
	if err := os.MkdirAll(cfg.ProgressPath, 0o750); err != nil {
		return nil, nil, fmt.Errorf("create progress directory: %w", err)
	}
	p, err := bulkimport.OpenBadgerProgress(cfg.ProgressPath)
	if err != nil {
		return nil, nil, err
	}
	return p, func() {
		if err := p.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing progress store")
		}
	}, nil
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
