package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medicrypt/consentledger/internal/identity"
	"github.com/medicrypt/consentledger/internal/ledger"
)

// ShowOptions holds flags for the show subcommands.
type ShowOptions struct {
	*RootOptions
	Owner     string
	ContentID string
	Requester string
}

// NewShowCommand creates the show command with record and grant
// subcommands. Reads need no keyfile: lookups are not access-controlled,
// only mutations are.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a record or grant by its coordinates",
	}

	record := &cobra.Command{
		Use:           "record",
		Short:         "Show the record for (owner, content id)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowRecord(opts, cmd)
		},
	}
	record.Flags().StringVar(&opts.Owner, "owner", "", "record owner identity")
	record.Flags().StringVar(&opts.ContentID, "cid", "", "content id of the record")
	record.MarkFlagRequired("owner")
	record.MarkFlagRequired("cid")

	grant := &cobra.Command{
		Use:           "grant",
		Short:         "Show the grant for (owner, content id, requester)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowGrant(opts, cmd)
		},
	}
	grant.Flags().StringVar(&opts.Owner, "owner", "", "record owner identity")
	grant.Flags().StringVar(&opts.ContentID, "cid", "", "content id of the record")
	grant.Flags().StringVar(&opts.Requester, "requester", "", "grant requester identity")
	grant.MarkFlagRequired("owner")
	grant.MarkFlagRequired("cid")
	grant.MarkFlagRequired("requester")

	cmd.AddCommand(record)
	cmd.AddCommand(grant)
	return cmd
}

func runShowRecord(opts *ShowOptions, cmd *cobra.Command) error {
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

	rec, err := l.Record(cmd.Context(), owner, opts.ContentID)
	if err != nil {
		return out.Failure(err)
	}
	if rec == nil {
		return out.Failure(&ledger.OpError{
			Code:    ledger.ErrCodeNotFound,
			Message: fmt.Sprintf("no record at (owner=%s, cid=%s)", owner, opts.ContentID),
		})
	}

	if opts.Format == "json" {
		return out.Success(recordView(rec))
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "record %s\n", rec.Addr)
	fmt.Fprintf(w, "  owner:      %s\n", rec.Owner)
	fmt.Fprintf(w, "  content id: %s\n", rec.ContentID)
	fmt.Fprintf(w, "  hash:       %s\n", rec.EncryptedHash)
	fmt.Fprintf(w, "  file name:  %s\n", rec.FileName)
	fmt.Fprintf(w, "  created at: %d\n", rec.CreatedAt)
	fmt.Fprintf(w, "  active:     %v\n", rec.IsActive)
	return nil
}

func runShowGrant(opts *ShowOptions, cmd *cobra.Command) error {
	out := NewFormatter(opts.RootOptions, cmd.OutOrStdout())

	owner, err := identity.Parse(opts.Owner)
	if err != nil {
		return out.Failure(fmt.Errorf("invalid --owner: %w", err))
	}
	requester, err := identity.Parse(opts.Requester)
	if err != nil {
		return out.Failure(fmt.Errorf("invalid --requester: %w", err))
	}

	l, closeStore, err := openLedger(opts.RootOptions)
	if err != nil {
		return out.Failure(err)
	}
	defer closeStore()

	g, err := l.LookupGrant(cmd.Context(), owner, opts.ContentID, requester)
	if err != nil {
		return out.Failure(err)
	}
	if g == nil {
		return out.Failure(&ledger.OpError{
			Code: ledger.ErrCodeNotFound,
			Message: fmt.Sprintf("no grant for requester %s on (owner=%s, cid=%s)",
				requester, owner, opts.ContentID),
		})
	}

	if opts.Format == "json" {
		return out.Success(grantView(g))
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "grant %s\n", g.Addr)
	fmt.Fprintf(w, "  record:     %s\n", g.RecordAddr)
	fmt.Fprintf(w, "  granter:    %s\n", g.Granter)
	fmt.Fprintf(w, "  requester:  %s\n", g.Requester)
	fmt.Fprintf(w, "  granted at: %d\n", g.GrantedAt)
	fmt.Fprintf(w, "  active:     %v\n", g.IsActive)
	return nil
}
