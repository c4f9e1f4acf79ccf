package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moleculab/synthon-sieve/internal/chem"
	"github.com/moleculab/synthon-sieve/internal/domain/library"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/database/postgres"
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

func newBuildLibraryCmd() *cobra.Command {
	var (
		samplePath string
		spikePath  string
		outPath    string
		pgName     string
	)

	cmd := &cobra.Command{
		Use:   "build-library",
		Short: "Build a reference library from a compound sample",
		Long:  "Decomposes every sample compound, tallies synthon popularity,\nnormalizes to the configured virtual sample size, and folds in the\nspike-ins.  The result is written to a JSON file, Postgres, or both.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			if outPath == "" && pgName == "" {
				return errors.New(errors.CodeInvalidParam, "nowhere to store the library: pass --out or --postgres-name")
			}

			engine, err := NewEngine(app.cfg, app.log)
			if err != nil {
				return err
			}

			mols, err := readMols(samplePath)
			if err != nil {
				return err
			}
			var spikes []library.SpikeIn
			if spikePath != "" {
				spikes, err = readSpikes(spikePath)
				if err != nil {
					return err
				}
			}

			builder := library.NewBuilder(engine, chem.NewTopoPharmacophore(), library.BuilderConfig{
				NormalizeTo:   app.cfg.Library.NormalizeTo,
				MinSampleSize: app.cfg.Library.MinSampleSize,
				SpikeInWeight: app.cfg.Library.SpikeInWeight,
				Workers:       app.cfg.Library.Workers,
			}, app.log)

			lib, err := builder.Build(cmd.Context(), mols, spikes)
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := SaveLibraryFile(outPath, lib); err != nil {
					return err
				}
			}
			if pgName != "" {
				pool, err := postgres.NewPool(cmd.Context(), app.cfg.Postgres)
				if err != nil {
					return err
				}
				defer pool.Close()
				store := postgres.NewLibraryStore(pool, app.log)
				if err := store.Save(cmd.Context(), pgName, lib); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "library built: %d unique synthons from %d compounds\n",
				lib.Len(), len(mols))
			if lib.InsufficientSample {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: sample below configured minimum, tallies are unreliable")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&samplePath, "sample", "", "SMILES file of sample compounds (required)")
	cmd.Flags().StringVar(&spikePath, "spikes", "", "SMILES file of spike-in compounds with optional weights")
	cmd.Flags().StringVar(&outPath, "out", "", "write the library as JSON to this path")
	cmd.Flags().StringVar(&pgName, "postgres-name", "", "save the library to Postgres under this name")
	_ = cmd.MarkFlagRequired("sample")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			if err := postgres.Migrate(source, app.cfg.Postgres.DSN()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "file://migrations", "migration source URL")
	return cmd
}
