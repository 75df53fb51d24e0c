package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd returns the root command for the parrot CLI
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "parrot",
		Short:         "parrot - autonomous social posting agent",
		Long:          "parrot learns an account's posting style, generates new posts with a language model, vets them, and publishes on a schedule.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newPostCmd())
	rootCmd.AddCommand(newReplyMentionsCmd())
	rootCmd.AddCommand(newLikeRetweetCmd())
	rootCmd.AddCommand(newScheduleCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
