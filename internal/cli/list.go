package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medicrypt/consentledger/internal/identity"
	"github.com/medicrypt/consentledger/internal/ledger"
	"github.com/medicrypt/consentledger/internal/model"
)

// ListOptions holds flags for the list subcommands.
type ListOptions struct {
	*RootOptions
	Owner     string
	ContentID string
	Requester string
}

// NewListCommand creates the list command with records and grants
// subcommands.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records or grants",
	}

	records := &cobra.Command{
		Use:           "records",
		Short:         "List all records owned by an identity",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListRecords(opts, cmd)
		},
	}
	records.Flags().StringVar(&opts.Owner, "owner", "", "record owner identity")
	records.MarkFlagRequired("owner")

	grants := &cobra.Command{
		Use:   "grants",
		Short: "List grants for a record or a requester",
		Long: `List grants either subordinate to one record (--owner and --cid) or
across all records for one requester (--requester).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListGrants(opts, cmd)
		},
	}
	grants.Flags().StringVar(&opts.Owner, "owner", "", "record owner identity")
	grants.Flags().StringVar(&opts.ContentID, "cid", "", "content id of the record")
	grants.Flags().StringVar(&opts.Requester, "requester", "", "requester identity")

	cmd.AddCommand(records)
	cmd.AddCommand(grants)
	return cmd
}

func runListRecords(opts *ListOptions, cmd *cobra.Command) error {
	out := NewFormatter(opts.RootOptions, cmd.OutOrStdout())

	owner, err := identity.Parse(opts.Owner)
	if err != nil {
		return out.Failure(fmt.Errorf("invalid --owner: %w", err))
	}

	l, closeStore, err := openLedger(opts.RootOptions)
	if err != nil {
		return out.Failure(err)
	}
	defer closeStore()

	records, err := l.Store().ListRecordsByOwner(cmd.Context(), owner)
	if err != nil {
		return out.Failure(err)
	}

	if opts.Format == "json" {
		views := make([]RecordView, len(records))
		for i := range records {
			views[i] = recordView(&records[i])
		}
		return out.Success(views)
	}
	w := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(w, "no records")
		return nil
	}
	for i := range records {
		rec := &records[i]
		fmt.Fprintf(w, "%s  active=%v  %s  %s\n", rec.Addr, rec.IsActive, rec.ContentID, rec.FileName)
	}
	return nil
}

func runListGrants(opts *ListOptions, cmd *cobra.Command) error {
	out := NewFormatter(opts.RootOptions, cmd.OutOrStdout())

	l, closeStore, err := openLedger(opts.RootOptions)
	if err != nil {
		return out.Failure(err)
	}
	defer closeStore()

	var grants []model.AccessGrant
	switch {
	case opts.Requester != "":
		requester, err := identity.Parse(opts.Requester)
		if err != nil {
			return out.Failure(fmt.Errorf("invalid --requester: %w", err))
		}
		grants, err = l.Store().ListGrantsForRequester(cmd.Context(), requester)
		if err != nil {
			return out.Failure(err)
		}
	case opts.Owner != "" && opts.ContentID != "":
		owner, err := identity.Parse(opts.Owner)
		if err != nil {
			return out.Failure(fmt.Errorf("invalid --owner: %w", err))
		}
		recordAddr, err := ledger.RecordAddress(owner, opts.ContentID)
		if err != nil {
			return out.Failure(err)
		}
		grants, err = l.Store().ListGrantsForRecord(cmd.Context(), recordAddr)
		if err != nil {
			return out.Failure(err)
		}
	default:
		return out.Failure(fmt.Errorf("either --requester or both --owner and --cid are required"))
	}

	if opts.Format == "json" {
		views := make([]GrantView, len(grants))
		for i := range grants {
			views[i] = grantView(&grants[i])
		}
		return out.Success(views)
	}
	w := cmd.OutOrStdout()
	if len(grants) == 0 {
		fmt.Fprintln(w, "no grants")
		return nil
	}
	for i := range grants {
		g := &grants[i]
		fmt.Fprintf(w, "%s  active=%v  record=%s  requester=%s\n", g.Addr, g.IsActive, g.RecordAddr, g.Requester)
	}
	return nil
}
