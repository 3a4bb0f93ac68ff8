package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [url]...",
	Short: "Decide the given URLs against the whitelist",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := buildApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer app.Close()

	// one load is enough; no schedule or watcher for a one-shot check
	app.manager.Reload()
	flt, ok := app.factory.BuildFilter()
	if !ok {
		return fmt.Errorf("no whitelist loaded from %s", cfg.WhitelistFile)
	}
	out := cmd.OutOrStdout()
	if snap := app.manager.Current(); snap != nil {
		fmt.Fprintf(out, "# %s: %d entries\n", snap.Source(), snap.Len())
	}
	for _, raw := range args {
		fmt.Fprintf(out, "%s\t%s\n", decide(flt, app.canon, raw), raw)
	}
	return nil
}
