package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medicrypt/consentledger/internal/identity"
	"github.com/medicrypt/consentledger/internal/ledger"
)

// GrantOptions holds flags for the grant command.
type GrantOptions struct {
	*RootOptions
	Keyfile   string
	Owner     string
	ContentID string
	Requester string
	Key       string
}

// NewGrantCommand creates the grant command.
func NewGrantCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GrantOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant a requester access to a record",
		Long: `Grant a requester access to a record by storing the record's symmetric
key re-encrypted for the requester's public key.

Granting to the same requester again refreshes the existing grant in
place: new key material, new granted_at, active again. Re-granting after
a revoke is always allowed.

Example:
  consentledger grant --keyfile patient.key --cid bafybeigdyrzt... \
    --requester 7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU \
    --key <key re-encrypted for the requester>`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrant(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Keyfile, "keyfile", "", "caller's signing keyfile")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "record owner (defaults to caller)")
	cmd.Flags().StringVar(&opts.ContentID, "cid", "", "content id of the record")
	cmd.Flags().StringVar(&opts.Requester, "requester", "", "identity being granted access")
	cmd.Flags().StringVar(&opts.Key, "key", "", "symmetric key re-encrypted for the requester")
	cmd.MarkFlagRequired("cid")
	cmd.MarkFlagRequired("requester")
	cmd.MarkFlagRequired("key")

	return cmd
}

func runGrant(opts *GrantOptions, cmd *cobra.Command) error {
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
		Kind:      ledger.OpGrant,
		Caller:    kp.ID,
		Owner:     owner,
		ContentID: opts.ContentID,
		Requester: requester,
		Payload:   opts.Key,
	}
	if err := signAndVerify(op, kp); err != nil {
		return out.Failure(err)
	}

	l, closeStore, err := openLedger(opts.RootOptions)
	if err != nil {
		return out.Failure(err)
	}
	defer closeStore()

	g, err := l.Grant(cmd.Context(), ledger.GrantParams{
		Caller:         kp.ID,
		Owner:          owner,
		ContentID:      opts.ContentID,
		Requester:      requester,
		ReencryptedKey: opts.Key,
	})
	if err != nil {
		return out.Failure(err)
	}

	if opts.Format == "json" {
		return out.Success(grantView(g))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "granted access at %s\n", g.Addr)
	fmt.Fprintf(cmd.OutOrStdout(), "  record:    %s\n", g.RecordAddr)
	fmt.Fprintf(cmd.OutOrStdout(), "  requester: %s\n", g.Requester)
	return nil
}
