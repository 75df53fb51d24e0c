package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPostCmd() *cobra.Command {
	var (
		handle string
		topic  string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "post-tweet",
		Short: "Generate, vet and publish one post",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			handles, err := app.resolveHandles(handle)
			if err != nil {
				return err
			}

			p := app.newPoster(dryRun)
			for _, h := range handles {
				outcome, err := p.Post(cmd.Context(), h, topic)
				if err != nil {
					return err
				}
				switch {
				case outcome.Rejected != "":
					fmt.Fprintf(cmd.OutOrStdout(), "%s: rejected (%s)\n", h, outcome.Rejected)
				case outcome.DryRun:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: dry run, would post:\n%s\n", h, outcome.Text)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: posted %s\n", h, outcome.PostID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&handle, "handle", "", "handle to post as")
	cmd.Flags().StringVar(&topic, "topic", "", "topic or theme for the post")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run the full pipeline but do not publish")
	return cmd
}
