package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"distill/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show content and task queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			contentStats, err := store.CheckoutStats(cmd.Context())
			if err != nil {
				return err
			}
			queueStats, err := store.QueueStats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(queue.AllStatuses()))
			total := 0
			for _, status := range queue.AllStatuses() {
				count := contentStats.ByStatus[status]
				total += count
				rows = append(rows, []string{string(status), strconv.Itoa(count)})
			}
			rows = append(rows, []string{"total", strconv.Itoa(total)})
			fmt.Fprintln(out, "Content")
			fmt.Fprintln(out, renderTable([]string{"STATUS", "COUNT"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(out, "Checked out: %d\n\n", contentStats.CheckedOut)

			taskRows := make([][]string, 0, len(queue.AllTaskTypes()))
			for _, taskType := range queue.AllTaskTypes() {
				taskRows = append(taskRows, []string{string(taskType), strconv.Itoa(queueStats.ByType[taskType])})
			}
			fmt.Fprintln(out, "Tasks")
			fmt.Fprintln(out, renderTable([]string{"TYPE", "COUNT"}, taskRows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(out, "Pending: %d  Processing: %d  Completed: %d  Failed: %d\n",
				queueStats.ByStatus[queue.TaskPending],
				queueStats.ByStatus[queue.TaskProcessing],
				queueStats.ByStatus[queue.TaskCompleted],
				queueStats.ByStatus[queue.TaskFailed])
			return nil
		},
	}
}
