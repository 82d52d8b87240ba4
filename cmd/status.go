package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store counts: records, matched, groups, per-retailer breakdown",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		return printResult(stats)
	},
}

func init() {
	statusCmd.Flags().StringVarP(&outputFormat, "output", "o", "json", "output format: json or yaml")
	rootCmd.AddCommand(statusCmd)
}
