package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"distill/internal/queue"
	"distill/internal/textutil"
)

const listTitleWidth = 48

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List content items",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.Status, 0, len(statusFlags))
			for _, raw := range statusFlags {
				status, ok := queue.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.ListContent(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No content items.")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				title := item.Title
				if title == "" {
					title = "-"
				}
				rows = append(rows, []string{
					strconv.FormatInt(item.ID, 10),
					string(item.ContentType),
					string(item.Status),
					textutil.Truncate(title, listTitleWidth),
					textutil.Truncate(item.URL, listTitleWidth),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "TYPE", "STATUS", "TITLE", "URL"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}
