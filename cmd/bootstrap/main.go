package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	planPath   string
	recordPath string
	statusAddr string
	jsonOut    bool
)

var rootCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Bootstrap a lending market on Sui",
	Long: `bootstrap lists reserves on a freshly deployed lending protocol.

It grants operator roles, creates the underlying tokens, initializes the
reserves and configures rate strategies, price feeds and risk parameters.
Every step checks chain state first, so an interrupted run can simply be
started again.

Configuration comes from RB_* environment variables (and .env files).
Each operator profile (acl, pool, rate, oracle, underlying) needs
RB_<PROFILE>_PACKAGE and, outside localnet, RB_<PROFILE>_MNEMONIC.

Examples:
  bootstrap plan --plan market.yaml
  bootstrap check
  bootstrap run --plan market.yaml --status-addr :8081`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&planPath, "plan", "", "plan YAML file (or RB_PLAN_PATH; default market when empty)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")

	runCmd.Flags().StringVar(&recordPath, "record", "", "deployment record output path (or RB_RECORD_PATH)")
	runCmd.Flags().StringVar(&statusAddr, "status-addr", "", "serve run progress on this address (or RB_STATUS_ADDR)")
	runCmd.Flags().Bool("fund", false, "request faucet funds for every operator on localnet")
	runCmd.Flags().Duration("lease-ttl", defaultLeaseTTL, "how long the run holds the network lease")

	rootCmd.AddCommand(runCmd, planCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
