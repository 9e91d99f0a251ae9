package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	pgdb "github.com/alanyang/interview-router/internal/adapter/postgres"
	pglocker "github.com/alanyang/interview-router/internal/adapter/postgres/locker"
	pgtranscript "github.com/alanyang/interview-router/internal/adapter/postgres/transcript"
	"github.com/alanyang/interview-router/internal/config"
)

var errNoDatabase = errors.New("DATABASE_URL is not set")

func newIngestCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load the transcript corpus into Postgres",
		Long: "Migrates the database and upserts every chunk of the configured corpus\n" +
			"(or the bundled sample) into the transcripts table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			return runIngest(cmd.Context(), cmd.OutOrStdout(), cfg, os.Getenv("DATABASE_URL"))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to router config file")
	return cmd
}

func runIngest(ctx context.Context, out io.Writer, cfg *config.Config, dbURL string) error {
	if dbURL == "" {
		return errNoDatabase
	}
	chunks, err := cfg.LoadCorpus()
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	pool, err := pgdb.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pgdb.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	repo := pgtranscript.New(pool)
	var n int
	err = pglocker.New(pool).WithLock(ctx, pglocker.CorpusLock, func(ctx context.Context) error {
		var err error
		n, err = repo.Insert(ctx, chunks)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	total, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}
	fmt.Fprintf(out, "Ingested %d chunks (%d total)\n", n, total)
	return nil
}
