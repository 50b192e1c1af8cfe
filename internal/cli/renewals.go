package cli

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
)

var renewalsCmd = &cobra.Command{
	Use:   "renewals",
	Short: "Policy renewal jobs",
}

var renewalsScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Expire overdue policies and announce upcoming renewals",
	RunE:  runRenewalsScan,
}

func init() {
	renewalsCmd.AddCommand(renewalsScanCmd)
	rootCmd.AddCommand(renewalsCmd)
}

func runRenewalsScan(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if err := a.startNotifications(); err != nil {
		a.close(context.Background())
		return err
	}

	report, scanErr := a.buildPortal().Policies.ScanRenewals(cmd.Context())

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.close(drainCtx)

	if scanErr != nil {
		return scanErr
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
