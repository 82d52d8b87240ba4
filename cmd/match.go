package main

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/model"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run the product matching engine",
}

var matchRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full batch sweep: exact matching, then fuzzy matching",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		engine, st, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := engine.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "match run")
		}
		return printResult(report)
	},
}

var matchExactCmd = &cobra.Command{
	Use:   "exact",
	Short: "Run batch exact identifier matching",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		engine, st, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := engine.RunExactMatching(ctx)
		if err != nil {
			return eris.Wrap(err, "match exact")
		}
		return printResult(report)
	},
}

var matchFuzzyCmd = &cobra.Command{
	Use:   "fuzzy",
	Short: "Run batch fuzzy name+dimension matching",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		engine, st, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := engine.RunFuzzyMatching(ctx)
		if err != nil {
			return eris.Wrap(err, "match fuzzy")
		}
		return printResult(report)
	},
}

var matchProductCmd = &cobra.Command{
	Use:   "product <id>",
	Short: "Run incremental matching for one record (exact first, then fuzzy)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid product id %q", args[0])
		}

		engine, st, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		result, review, err := engine.MatchProduct(ctx, id)
		if err != nil {
			return eris.Wrapf(err, "match product %d", id)
		}
		if result == nil && len(review) == 0 {
			zap.L().Info("no match found", zap.Int64("product_id", id))
		}

		return printResult(struct {
			Result *model.MatchResult      `json:"result"`
			Review []model.ReviewCandidate `json:"review,omitempty"`
		}{result, review})
	},
}

func init() {
	matchCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format: json or yaml")
	matchCmd.AddCommand(matchRunCmd)
	matchCmd.AddCommand(matchExactCmd)
	matchCmd.AddCommand(matchFuzzyCmd)
	matchCmd.AddCommand(matchProductCmd)
	rootCmd.AddCommand(matchCmd)
}
