package main

import (
	"os"

	"github.com/meshfin/financeiro-api/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "financeiro",
		Short:         "Consolidação financeira de estabelecimentos Zoop e Use",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// --- Load .env file (for local development) ---
			_ = config.LoadDotEnv(".env")
		},
	}
	root.AddCommand(newServeCmd(), newSeedCmd())
	return root
}
