// Command payrollbot runs the payroll approval bot and its maintenance jobs.
//
// @title                      Payroll Approval Bot API
// @version                    1.0
// @description                VK Callback API webhook and the token-guarded admin API of the payroll approval bot.
// @BasePath                   /api/v1
// @securityDefinitions.apikey AdminToken
// @in                         header
// @name                       X-Admin-Token
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	envFiles  []string
	rulesPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "payrollbot",
		Short:         "Payroll approval chat bot",
		Long:          "Announces payroll statements to curators and tutors over VK, runs the approval dialogue and archives batches when their window closes.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files loaded before reading the environment (default .env)")
	root.PersistentFlags().StringVar(&opts.rulesPath, "rules", "", "retention rules YAML; overrides RULES_PATH")

	root.AddCommand(
		newServeCmd(opts),
		newSweepCmd(opts),
		newImportCmd(opts),
		newMigrateCmd(opts),
		newReconcileCmd(opts),
	)
	return root
}
