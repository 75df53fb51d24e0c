package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parrotlabs/parrot/internal/styleprofile"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		handle   string
		maxPosts int
		combined bool
	)

	cmd := &cobra.Command{
		Use:   "analyze-style",
		Short: "Build a style profile from archived posts",
		Long:  "Analyzes archived posts with the configured model and writes a style profile used by generate-tweet and post-tweet. Run fetch-tweets first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			analyzer := styleprofile.NewAnalyzer(app.llm, app.store, app.logger)
			ctx := cmd.Context()

			if combined {
				handles := app.cfg.SourceHandles
				if len(handles) < 2 {
					return fmt.Errorf("combined analysis needs at least two SOURCE_HANDLES")
				}
				profile, err := analyzer.AnalyzeCombined(ctx, handles, maxPosts)
				if err != nil {
					return err
				}
				path, err := styleprofile.Save(app.cfg.ProfilesDir, profile)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "combined profile written to %s\n", path)
				return nil
			}

			handles, err := app.resolveHandles(handle)
			if err != nil {
				return err
			}
			for _, h := range handles {
				profile, err := analyzer.Analyze(ctx, h, maxPosts)
				if err != nil {
					return fmt.Errorf("analyze %s: %w", h, err)
				}
				path, err := styleprofile.Save(app.cfg.ProfilesDir, profile)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: profile written to %s (%d posts analyzed)\n", h, path, profile.AnalyzedCount)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&handle, "handle", "", "handle to analyze")
	cmd.Flags().IntVar(&maxPosts, "max-posts", 50, "maximum archived posts to analyze")
	cmd.Flags().BoolVar(&combined, "combined", false, "blend all SOURCE_HANDLES into one profile")
	return cmd
}
