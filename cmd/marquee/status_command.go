package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"marquee/internal/requests"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show request counts per lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *requests.Store) error {
				summary, err := store.Summary(cmd.Context())
				if err != nil {
					return fmt.Errorf("request summary: %w", err)
				}

				rows := [][]string{
					{string(requests.StatePendingLookup), strconv.Itoa(summary.Pending)},
					{string(requests.StateNotYetReleased), strconv.Itoa(summary.Unreleased)},
					{string(requests.StateQueued), strconv.Itoa(summary.Queued)},
					{string(requests.StateDownloading), strconv.Itoa(summary.Downloading)},
					{string(requests.StateCompleted), strconv.Itoa(summary.Completed)},
					{string(requests.StateFailed), strconv.Itoa(summary.Failed)},
					{"total", strconv.Itoa(summary.Total)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"State", "Requests"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}
