package cli

import (
	"fmt"

	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"

	insurai "github.com/goliatone/go-insurai"
)

// cliActor is recorded in the audit log for accounts created from the
// command line.
var cliActor = insurai.Identity{Subject: "insurai-cli", Role: insurai.RoleAdmin}

var (
	adminName     string
	adminEmail    string
	adminPassword string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrator account tools",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator account",
	Long:  "Applies migrations and registers an ADMIN account. There is no HTTP route for this.",
	RunE:  runAdminCreate,
}

func init() {
	adminCreateCmd.Flags().StringVar(&adminName, "name", "", "Display name")
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "Login email")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "Initial password")
	_ = adminCreateCmd.MarkFlagRequired("name")
	_ = adminCreateCmd.MarkFlagRequired("email")
	_ = adminCreateCmd.MarkFlagRequired("password")
	adminCmd.AddCommand(adminCreateCmd)
	rootCmd.AddCommand(adminCmd)
}

func runAdminCreate(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	if err := a.repo.Migrate(cmd.Context()); err != nil {
		return err
	}

	account, err := a.buildPortal().Registrar.Register(cmd.Context(), cliActor, insurai.RegisterAccountMessage{
		Kind:     insurai.AccountAdmin,
		Name:     adminName,
		Email:    adminEmail,
		Password: adminPassword,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(account))
	return nil
}
