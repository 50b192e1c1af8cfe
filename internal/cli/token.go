package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	insurai "github.com/goliatone/go-insurai"
)

var (
	tokenSubject string
	tokenRole    string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Identity token tools",
}

var tokenMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Sign an identity token for a subject and role",
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := insurai.ParseRole(tokenRole)
		if err != nil {
			return err
		}

		a, err := loadApp(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.close(cmd.Context())

		token, claims, err := a.tokens.Generate(tokenSubject, role)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"token":      token,
			"subject":    claims.Subject,
			"role":       claims.Role,
			"expires_at": claims.ExpiresAt,
		})
	},
}

func init() {
	tokenMintCmd.Flags().StringVar(&tokenSubject, "subject", "", "Subject email")
	tokenMintCmd.Flags().StringVar(&tokenRole, "role", "", "ADMIN, HR, EMPLOYEE or AGENT")
	_ = tokenMintCmd.MarkFlagRequired("subject")
	_ = tokenMintCmd.MarkFlagRequired("role")
	tokenCmd.AddCommand(tokenMintCmd)
	rootCmd.AddCommand(tokenCmd)
}
