package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medicrypt/consentledger/internal/ledger"
)

// CloseOptions holds flags for the close command.
type CloseOptions struct {
	*RootOptions
	Keyfile   string
	Owner     string
	ContentID string
}

// NewCloseCommand creates the close command.
func NewCloseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CloseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "close",
		Short: "Deactivate or close a record",
		Long: `End a record's active life.

Under the retain policy the record stays queryable, marked inactive. Under
the reclaim policy the record row is removed, its storage allowance
refunded, and the address burned so the same (owner, content id) pair
cannot be re-registered unless the reregister policy allows it.

Existing grants are not touched, but no new grant can be made afterwards.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClose(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Keyfile, "keyfile", "", "caller's signing keyfile")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "record owner (defaults to caller)")
	cmd.Flags().StringVar(&opts.ContentID, "cid", "", "content id of the record")
	cmd.MarkFlagRequired("cid")

	return cmd
}

func runClose(opts *CloseOptions, cmd *cobra.Command) error {
	out := NewFormatter(opts.RootOptions, cmd.OutOrStdout())

	kp, err := signerFromFlags(opts.Keyfile)
	if err != nil {
		return out.Failure(err)
	}
	owner, err := resolveOwner(opts.Owner, kp.ID)
	if err != nil {
		return out.Failure(err)
	}

	op := &ledger.Operation{
		Kind:      ledger.OpClose,
		Caller:    kp.ID,
		Owner:     owner,
		ContentID: opts.ContentID,
	}
	if err := signAndVerify(op, kp); err != nil {
		return out.Failure(err)
	}

	l, closeStore, err := openLedger(opts.RootOptions)
	if err != nil {
		return out.Failure(err)
	}
	defer closeStore()

	if err := l.Close(cmd.Context(), ledger.CloseParams{
		Caller:    kp.ID,
		Owner:     owner,
		ContentID: opts.ContentID,
	}); err != nil {
		return out.Failure(err)
	}

	if opts.Format == "json" {
		return out.Success(map[string]string{"content_id": opts.ContentID})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "closed record %s\n", opts.ContentID)
	return nil
}
