package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parrotlabs/parrot/internal/archive"
	"github.com/parrotlabs/parrot/internal/logging"
)

func newFetchCmd() *cobra.Command {
	var (
		handle string
		count  int
	)

	cmd := &cobra.Command{
		Use:   "fetch-tweets",
		Short: "Fetch recent posts from the platform into the local archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			handles := app.cfg.SourceHandles
			if handle != "" {
				var err error
				handles, err = app.resolveHandles(handle)
				if err != nil {
					return err
				}
			}
			if len(handles) == 0 {
				handles, err = app.resolveHandles("")
				if err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			for _, h := range handles {
				posts, err := app.client.Timeline(ctx, h, count)
				if err != nil {
					return fmt.Errorf("fetch timeline for %s: %w", h, err)
				}

				fetched := make([]archive.FetchedPost, 0, len(posts))
				for _, p := range posts {
					fetched = append(fetched, archive.FetchedPost{
						PlatformID: p.ID,
						Text:       p.Text,
						CreatedAt:  p.CreatedAt,
					})
				}
				saved, err := app.store.SaveFetched(ctx, h, fetched)
				if err != nil {
					return fmt.Errorf("archive posts for %s: %w", h, err)
				}
				app.logger.WithFields(logging.Fields{
					"handle":  h,
					"fetched": len(posts),
					"new":     saved,
				}).Info("Fetched posts into archive")
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d fetched, %d new\n", h, len(posts), saved)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&handle, "handle", "", "handle to fetch (default: SOURCE_HANDLES or X_HANDLE)")
	cmd.Flags().IntVar(&count, "count", 100, "maximum posts to fetch per handle")
	return cmd
}
