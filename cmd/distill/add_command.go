package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"distill/internal/queue"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var typeFlag string

	cmd := &cobra.Command{
		Use:   "add <url> [url...]",
		Short: "Queue URLs for ingestion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentType, ok := queue.ParseContentType(typeFlag)
			if !ok {
				return fmt.Errorf("unknown content type %q", typeFlag)
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			for _, rawURL := range args {
				rawURL = strings.TrimSpace(rawURL)
				if rawURL == "" {
					continue
				}
				existing, err := store.FindContentByURL(cmd.Context(), rawURL)
				if err != nil {
					return err
				}
				if existing != nil {
					fmt.Fprintf(out, "Already queued as item %d: %s\n", existing.ID, rawURL)
					continue
				}

				item, err := store.NewContent(cmd.Context(), contentType, rawURL, "")
				if err != nil {
					return err
				}
				if _, err := store.Enqueue(cmd.Context(), queue.TaskProcessContent, &item.ID, ""); err != nil {
					return err
				}
				fmt.Fprintf(out, "Queued item %d: %s\n", item.ID, rawURL)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeFlag, "type", "t", string(queue.TypeArticle), "Content type (article, podcast, news)")
	return cmd
}
