package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/leafsii/reserve-bootstrap/internal/market"
	"github.com/leafsii/reserve-bootstrap/internal/pipeline"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the resolved plan",
	Long: `Resolve the plan file (or the default market) against the current
configuration and print the reserves a run would list.`,
	RunE: runPlan,
}

type planAsset struct {
	Symbol       string            `json:"symbol"`
	Name         string            `json:"name"`
	Decimals     uint8             `json:"decimals"`
	MaxSupply    string            `json:"max_supply"`
	RateStrategy string            `json:"rate_strategy"`
	Curve        map[string]string `json:"curve"`
	Risk         market.RiskParams `json:"risk"`
	FeedID       string            `json:"feed_id,omitempty"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	assets := make([]planAsset, 0, len(e.plan.Assets))
	for _, a := range e.plan.Assets {
		pa := planAsset{
			Symbol:       a.Underlying.Symbol,
			Name:         a.Underlying.Name,
			Decimals:     a.Underlying.Decimals,
			MaxSupply:    a.Underlying.MaxSupply,
			RateStrategy: a.Strategy.Name,
			Curve: map[string]string{
				"optimal_usage_ratio":       a.Strategy.OptimalUsageRatio.Percent(),
				"base_variable_borrow_rate": a.Strategy.BaseVariableBorrowRate.Percent(),
				"variable_rate_slope1":      a.Strategy.VariableRateSlope1.Percent(),
				"variable_rate_slope2":      a.Strategy.VariableRateSlope2.Percent(),
			},
			Risk: a.Risk,
		}
		if len(a.FeedID) > 0 {
			pa.FeedID = "0x" + hex.EncodeToString(a.FeedID)
		}
		assets = append(assets, pa)
	}

	if jsonOut {
		return printJSON(map[string]any{
			"network":  e.cfg.Sui.Network,
			"treasury": e.plan.Treasury,
			"assets":   assets,
		})
	}

	fmt.Printf("Network:  %s\nTreasury: %s\n\n", e.cfg.Sui.Network, e.plan.Treasury)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tDECIMALS\tSTRATEGY\tOPTIMAL\tLTV\tTHRESHOLD\tBONUS\tBORROW\tFEED")
	for _, a := range assets {
		feed := a.FeedID
		if feed == "" {
			feed = "(none)"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			a.Symbol, a.Decimals, a.RateStrategy, a.Curve["optimal_usage_ratio"],
			bps(a.Risk.BaseLTV), bps(a.Risk.LiquidationThreshold), bps(a.Risk.LiquidationBonus),
			a.Risk.BorrowingEnabled, feed)
	}
	return w.Flush()
}

// bps formats basis points as a percentage.
func bps(v uint64) string {
	return decimal.NewFromInt(int64(v)).Shift(-2).String() + "%"
}

func printSummary(report *pipeline.Report) {
	snap := report.Snapshot()
	fmt.Printf("Run %s\n\n", snap.RunID)

	seen := make(map[pipeline.Stage]bool)
	var stages []string
	for s := range snap.Stages {
		seen[s] = true
		stages = append(stages, string(s))
	}
	for _, step := range snap.Steps {
		if !seen[step.Stage] {
			seen[step.Stage] = true
			stages = append(stages, string(step.Stage))
		}
	}
	sort.Strings(stages)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tOUTCOME\tAPPLIED\tEXISTING\tMISSING\tFAILED\tSKIPPED")
	for _, s := range stages {
		st := pipeline.Stage(s)
		outcome, ok := snap.Stages[st]
		if !ok {
			outcome = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n", s, outcome,
			report.Count(st, pipeline.OutcomeApplied),
			report.Count(st, pipeline.OutcomeAlreadyExists),
			report.Count(st, pipeline.OutcomeMissing),
			report.Count(st, pipeline.OutcomeFailed),
			report.Count(st, pipeline.OutcomeSkipped),
		)
	}
	w.Flush()

	failed := report.Failed()
	if len(failed) == 0 {
		return
	}
	fmt.Printf("\nFailed steps:\n")
	for _, f := range failed {
		fmt.Printf("  %s %s %s: %s\n", f.Stage, f.Symbol, f.Step, f.Error)
	}
}
