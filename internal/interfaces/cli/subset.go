package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/moleculab/synthon-sieve/internal/application/subsetting"
	"github.com/moleculab/synthon-sieve/internal/domain/library"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/database/postgres"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/messaging/kafka"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/storage/minio"
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// loadLibrary resolves the reference library from a JSON file or Postgres.
func loadLibrary(cmd *cobra.Command, app *appContext, filePath, pgName string) (*library.Library, error) {
	switch {
	case filePath != "":
		return LoadLibraryFile(filePath)
	case pgName != "":
		pool, err := postgres.NewPool(cmd.Context(), app.cfg.Postgres)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		return postgres.NewLibraryStore(pool, app.log).Load(cmd.Context(), pgName)
	}
	return nil, errors.New(errors.CodeInvalidParam, "no reference library: pass --library or --postgres-name")
}

func newSubsetCmd() *cobra.Command {
	var (
		inputPath  string
		outputPath string
		libPath    string
		pgName     string
		analysis   bool
	)

	cmd := &cobra.Command{
		Use:   "subset",
		Short: "Stream a catalogue through scoring and write the retained subset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			engine, err := NewEngine(app.cfg, app.log)
			if err != nil {
				return err
			}
			lib, err := loadLibrary(cmd, app, libPath, pgName)
			if err != nil {
				return err
			}

			counter, closeCounter, err := NewCounter(ctx, app.cfg, lib, app.log)
			if err != nil {
				return err
			}
			if closeCounter != nil {
				defer func() { _ = closeCounter() }()
			}

			cache, closeCache, err := NewTallyCache(ctx, app.cfg)
			if err != nil {
				return err
			}
			if closeCache != nil {
				defer func() { _ = closeCache() }()
			}

			in, err := os.Open(inputPath)
			if err != nil {
				return errors.Wrap(err, errors.CodeInternal, "open catalogue file")
			}
			defer in.Close()

			runID := uuid.New().String()

			out, err := os.Create(outputPath)
			if err != nil {
				return errors.Wrap(err, errors.CodeInternal, "create output file")
			}
			defer out.Close()

			sinks := []subsetting.Sink{subsetting.NewTSVSink(out)}
			if app.cfg.Kafka.Enabled {
				pub, err := kafka.NewVerdictPublisher(app.cfg.Kafka, runID, app.log)
				if err != nil {
					return err
				}
				sinks = append(sinks, pub)
			}
			if app.cfg.Minio.Enabled {
				chunks, err := minio.NewChunkSink(ctx, app.cfg.Minio, runID, app.log)
				if err != nil {
					return err
				}
				sinks = append(sinks, chunks)
			}

			cfg := *app.cfg
			cfg.Pipeline.AnalysisMode = cfg.Pipeline.AnalysisMode || analysis
			pipeline := NewPipeline(&cfg, engine, counter, lib, cache, nil, runID, app.log)

			summary, err := pipeline.Run(ctx, subsetting.NewLineSource(in), subsetting.NewMultiSink(sinks...))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "run %s: %d processed, %d retained, %d failed in %s\n",
				summary.RunID, summary.Processed, summary.Retained, summary.Failed, summary.Elapsed.Round(time.Millisecond))
			for issue, n := range summary.Issues {
				fmt.Fprintf(w, "  %6d  %s\n", n, issue)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "catalogue SMILES file (required)")
	cmd.Flags().StringVar(&outputPath, "output", "", "TSV output path (required)")
	cmd.Flags().StringVar(&libPath, "library", "", "reference library JSON file")
	cmd.Flags().StringVar(&pgName, "postgres-name", "", "load the reference library from Postgres")
	cmd.Flags().BoolVar(&analysis, "analysis", false, "forward rejected verdicts too")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newScoreCmd() *cobra.Command {
	var (
		libPath string
		pgName  string
	)

	cmd := &cobra.Command{
		Use:   "score SMILES...",
		Short: "Assess individual compounds and print their verdicts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			engine, err := NewEngine(app.cfg, app.log)
			if err != nil {
				return err
			}
			lib, err := loadLibrary(cmd, app, libPath, pgName)
			if err != nil {
				return err
			}
			counter, closeCounter, err := NewCounter(ctx, app.cfg, lib, app.log)
			if err != nil {
				return err
			}
			if closeCounter != nil {
				defer func() { _ = closeCounter() }()
			}

			pipeline := NewPipeline(app.cfg, engine, counter, lib, nil, nil, "", app.log)
			w := cmd.OutOrStdout()
			for _, smiles := range args {
				v, err := pipeline.Assess(ctx, subsetting.Compound{ID: smiles, SMILES: smiles})
				if err != nil {
					return err
				}
				status := "rejected"
				if v.Acceptable {
					status = "retained"
				}
				fmt.Fprintf(w, "%s\t%s\tamicability=%.1f\tper_hac=%.3f\tboringness=%.2f\ttier=%s",
					smiles, status, v.Amicability, v.AmicabilityPerHAC, v.Boringness, v.Tier)
				if v.Issue != "" {
					fmt.Fprintf(w, "\t(%s)", v.Issue)
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&libPath, "library", "", "reference library JSON file")
	cmd.Flags().StringVar(&pgName, "postgres-name", "", "load the reference library from Postgres")
	return cmd
}
