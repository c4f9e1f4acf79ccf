package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moleculab/synthon-sieve/internal/chem"
)

func newDecomposeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decompose SMILES...",
		Short: "Print the canonical synthon multiset of each molecule",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			engine, err := NewEngine(app.cfg, app.log)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, smiles := range args {
				mol, err := chem.ParseSMILES(smiles)
				if err != nil {
					return err
				}
				synthons, err := engine.Decompose(mol)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%d synthons\n", smiles, len(synthons))
				for _, s := range synthons {
					fmt.Fprintf(out, "  %s\t%d heavy atoms\n", s.Key, s.HeavyAtoms)
				}
			}
			return nil
		},
	}
}
