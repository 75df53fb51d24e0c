package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newReplyMentionsCmd() *cobra.Command {
	var (
		handle string
		count  int
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "reply-mentions",
		Short: "Reply to recent mentions in the account's style",
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

			e := app.newEngager(dryRun)
			for _, h := range handles {
				n, err := e.ReplyToMentions(cmd.Context(), h, count)
				if err != nil {
					return err
				}
				if dryRun {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: dry run, would reply to %d mention(s)\n", h, n)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: replied to %d mention(s)\n", h, n)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&handle, "handle", "", "handle to reply as")
	cmd.Flags().IntVar(&count, "count", 3, "maximum replies to send")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "generate and vet replies but do not send them")
	return cmd
}

func newLikeRetweetCmd() *cobra.Command {
	var (
		handle   string
		keywords string
		count    int
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "like-retweet",
		Short: "Like and retweet recent posts matching keywords",
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

			e := app.newEngager(dryRun)
			for _, h := range handles {
				words := splitKeywords(keywords)
				if len(words) == 0 {
					// Fall back to the profile's usual topics.
					words = app.profileFor(h).Topics
				}
				n, err := e.LikeRetweet(cmd.Context(), h, words, count)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d action(s) taken\n", h, n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&handle, "handle", "", "handle to engage as")
	cmd.Flags().StringVar(&keywords, "keywords", "", "comma-separated search keywords (defaults to profile topics)")
	cmd.Flags().IntVar(&count, "count", 10, "maximum actions to take")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "search but take no actions")
	return cmd
}

func splitKeywords(s string) []string {
	var words []string
	for _, w := range strings.Split(s, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}
