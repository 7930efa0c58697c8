package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	After int64
	Limit int
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Read the append-only domain event log",
		Long: `Read the append-only domain event log.

This is the feed off-chain indexers consume: poll with --after set to the
last seq you have seen. Events are immutable facts ordered by seq.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.After, "after", 0, "only events with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 = all)")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	out := NewFormatter(opts.RootOptions, cmd.OutOrStdout())

	l, closeStore, err := openLedger(opts.RootOptions)
	if err != nil {
		return out.Failure(err)
	}
	defer closeStore()

	events, err := l.Store().EventsSince(cmd.Context(), opts.After, opts.Limit)
	if err != nil {
		return out.Failure(err)
	}

	if opts.Format == "json" {
		return out.Success(events)
	}
	w := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(w, "no events")
		return nil
	}
	for _, ev := range events {
		fmt.Fprintf(w, "%6d  %-18s  record=%s", ev.Seq, ev.Kind, ev.RecordAddr)
		if ev.GrantAddr != "" {
			fmt.Fprintf(w, "  grant=%s  requester=%s", ev.GrantAddr, ev.Requester)
		}
		fmt.Fprintf(w, "  ts=%d\n", ev.Timestamp)
	}
	return nil
}
