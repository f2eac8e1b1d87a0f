package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"marquee/internal/lifecycle"
	"marquee/internal/requests"
)

func newRequestsCommand(ctx *commandContext) *cobra.Command {
	requestsCmd := &cobra.Command{
		Use:   "requests",
		Short: "Inspect and manage tracked download requests",
	}

	requestsCmd.AddCommand(newRequestsListCommand(ctx))
	requestsCmd.AddCommand(newRequestsShowCommand(ctx))
	requestsCmd.AddCommand(newRequestsRetryCommand(ctx))

	return requestsCmd
}

func newRequestsListCommand(ctx *commandContext) *cobra.Command {
	var stateFilters []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked requests, optionally filtered by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := parseStates(stateFilters)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *requests.Store) error {
				items, err := store.List(cmd.Context(), states...)
				if err != nil {
					return fmt.Errorf("list requests: %w", err)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No requests tracked.")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.TMDBID, 10),
						item.Title,
						formatYear(item.Year),
						string(item.State),
						formatProgress(item),
						strconv.Itoa(len(item.Requesters)),
						item.UpdatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"TMDB ID", "Title", "Year", "State", "Progress", "Requesters", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&stateFilters, "state", nil, "Filter by state (repeatable)")
	return cmd
}

func newRequestsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <tmdb-id>",
		Short: "Show one request in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmdbID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid TMDB id %q", args[0])
			}
			return ctx.withStore(func(store *requests.Store) error {
				rec, err := store.Get(cmd.Context(), tmdbID)
				if err != nil {
					return fmt.Errorf("load request %d: %w", tmdbID, err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Title:       %s\n", rec.DisplayTitle())
				fmt.Fprintf(out, "TMDB ID:     %d\n", rec.TMDBID)
				fmt.Fprintf(out, "State:       %s\n", rec.State)
				if rec.RadarrMovieID > 0 {
					fmt.Fprintf(out, "Radarr ID:   %d\n", rec.RadarrMovieID)
				}
				if rec.ReleaseDate != nil {
					fmt.Fprintf(out, "Release:     %s\n", rec.ReleaseDate.Format("2006-01-02"))
				}
				if rec.State == requests.StateDownloading || rec.ProgressPercent > 0 {
					fmt.Fprintf(out, "Progress:    %.1f%%\n", rec.ProgressPercent)
				}
				if rec.LastError != "" {
					fmt.Fprintf(out, "Last error:  %s\n", rec.LastError)
				}
				fmt.Fprintf(out, "Requesters:  %s\n", strings.Join(rec.Requesters, ", "))
				fmt.Fprintf(out, "Created:     %s\n", rec.CreatedAt.Local().Format(time.RFC1123))
				fmt.Fprintf(out, "Updated:     %s\n", rec.UpdatedAt.Local().Format(time.RFC1123))
				if len(rec.Notified) > 0 {
					markers := make([]string, 0, len(rec.Notified))
					for key := range rec.Notified {
						markers = append(markers, key)
					}
					sort.Strings(markers)
					fmt.Fprintf(out, "Notified:    %s\n", strings.Join(markers, ", "))
				}
				return nil
			})
		},
	}
}

func newRequestsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <tmdb-id>",
		Short: "Revive a failed request so the monitor picks it up again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmdbID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid TMDB id %q", args[0])
			}
			return ctx.withStore(func(store *requests.Store) error {
				rec, err := retryRequest(cmd.Context(), store, tmdbID)
				if err != nil {
					return fmt.Errorf("retry request %d: %w", tmdbID, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s reset to %s\n", rec.DisplayTitle(), rec.State)
				return nil
			})
		},
	}
}

// retryRequest revives a failed request through the same transition the
// monitor uses, so the CLI cannot drift from the lifecycle rules. It replays
// the event on a revision conflict.
func retryRequest(ctx context.Context, store *requests.Store, tmdbID int64) (*requests.Request, error) {
	for {
		rec, err := store.Get(ctx, tmdbID)
		if err != nil {
			return nil, err
		}
		if rec.State != requests.StateFailed {
			return nil, fmt.Errorf("request is %s, only failed requests can be retried", rec.State)
		}
		updated, _ := lifecycle.Apply(*rec, lifecycle.RetryRequested{})
		if err := store.Update(ctx, &updated); err != nil {
			if err == requests.ErrConflict {
				continue
			}
			return nil, err
		}
		return &updated, nil
	}
}

func parseStates(values []string) ([]requests.State, error) {
	states := make([]requests.State, 0, len(values))
	for _, value := range values {
		state, ok := requests.ParseState(value)
		if !ok {
			return nil, fmt.Errorf("unknown state %q (known: %s)", value, knownStates())
		}
		states = append(states, state)
	}
	return states, nil
}

func knownStates() string {
	all := requests.AllStates()
	names := make([]string, len(all))
	for i, state := range all {
		names[i] = string(state)
	}
	return strings.Join(names, ", ")
}

func formatYear(year int) string {
	if year <= 0 {
		return ""
	}
	return strconv.Itoa(year)
}

func formatProgress(rec *requests.Request) string {
	switch rec.State {
	case requests.StateDownloading:
		return fmt.Sprintf("%.0f%%", rec.ProgressPercent)
	case requests.StateCompleted:
		return "100%"
	default:
		return ""
	}
}
