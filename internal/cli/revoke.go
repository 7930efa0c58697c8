package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medicrypt/consentledger/internal/identity"
	"github.com/medicrypt/consentledger/internal/ledger"
)

// RevokeOptions holds flags for the revoke command.
type RevokeOptions struct {
	*RootOptions
	Keyfile   string
	Owner     string
	ContentID string
	Requester string
}

// NewRevokeCommand creates the revoke command.
func NewRevokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RevokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a requester's access to a record",
		Long: `Revoke access previously granted to a requester.

Under the retain policy the grant stays readable for audit history, marked
inactive. Under the reclaim policy the grant row is removed and its storage
allowance refunded. Either way the requester can be granted access again
later at the same address.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRevoke(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Keyfile, "keyfile", "", "caller's signing keyfile")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "record owner (defaults to caller)")
	cmd.Flags().StringVar(&opts.ContentID, "cid", "", "content id of the record")
	cmd.Flags().StringVar(&opts.Requester, "requester", "", "identity whose access is revoked")
	cmd.MarkFlagRequired("cid")
	cmd.MarkFlagRequired("requester")

	return cmd
}

func runRevoke(opts *RevokeOptions, cmd *cobra.Command) error {
	out := NewFormatter(opts.RootOptions, cmd.OutOrStdout())

	kp, err := signerFromFlags(opts.Keyfile)
	if err != nil {
		return out.Failure(err)
	}
	owner, err := resolveOwner(opts.Owner, kp.ID)
	if err != nil {
		return out.Failure(err)
	}
	requester, err := identity.Parse(opts.Requester)
	if err != nil {
		return out.Failure(fmt.Errorf("invalid --requester: %w", err))
	}

	op := &ledger.Operation{
		Kind:      ledger.OpRevoke,
		Caller:    kp.ID,
		Owner:     owner,
		ContentID: opts.ContentID,
		Requester: requester,
	}
	if err := signAndVerify(op, kp); err != nil {
		return out.Failure(err)
	}

	l, closeStore, err := openLedger(opts.RootOptions)
	if err != nil {
		return out.Failure(err)
	}
	defer closeStore()

	if err := l.Revoke(cmd.Context(), ledger.RevokeParams{
		Caller:    kp.ID,
		Owner:     owner,
		ContentID: opts.ContentID,
		Requester: requester,
	}); err != nil {
		return out.Failure(err)
	}

	if opts.Format == "json" {
		return out.Success(map[string]string{
			"content_id": opts.ContentID,
			"requester":  requester.String(),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "revoked access for %s on %s\n", requester, opts.ContentID)
	return nil
}
