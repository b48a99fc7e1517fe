package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"github.com/bjulian5/cq/cmd/run"
	"github.com/bjulian5/cq/cmd/show"
	"github.com/bjulian5/cq/cmd/status"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cq",
	Short: "Commit queue for gerrit-reviewed repositories",
	Long: `cq drives the commit queue: it collects the changes marked ready on
the review server, applies them together onto a clean checkout in
dependency order, and submits the ones that survive validation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		log.Fatal(err)
	}
}

func init() {
	// Register all commands
	commands := []Command{
		&run.Command{},
		&show.Command{},
		&status.Command{},
	}

	for _, cmd := range commands {
		cmd.Register(rootCmd)
	}
}
