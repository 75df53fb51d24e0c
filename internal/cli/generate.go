package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parrotlabs/parrot/internal/generate"
)

func newGenerateCmd() *cobra.Command {
	var (
		handle string
		topic  string
	)

	cmd := &cobra.Command{
		Use:   "generate-tweet",
		Short: "Generate a candidate post and print it without publishing",
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
			h := handles[0]

			profile := app.profileFor(h)
			generator := generate.NewGenerator(app.llm)
			text, err := generator.Generate(cmd.Context(), profile, topic)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)
			if topics := generate.SuggestTopics(profile); len(topics) > 0 && topic == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\n(profile topics: %s)\n", strings.Join(topics, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&handle, "handle", "", "handle whose style profile to use")
	cmd.Flags().StringVar(&topic, "topic", "", "topic or theme for the post")
	return cmd
}
