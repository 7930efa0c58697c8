package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medicrypt/consentledger/internal/ledger"
)

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	Keyfile       string
	ContentID     string
	EncryptedHash string
	FileName      string
	OwnerKey      string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register metadata for an encrypted off-chain artifact",
		Long: `Register metadata for an encrypted off-chain artifact.

The caller (the keyfile's identity) becomes the record owner. The content
id, ciphertext hash, and key material are opaque to the ledger and stored
verbatim.

Example:
  consentledger register --keyfile patient.key \
    --cid bafybeigdyrzt... --hash 9f86d08... --file-name scan.dcm \
    --owner-key <key encrypted for yourself>`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Keyfile, "keyfile", "", "caller's signing keyfile")
	cmd.Flags().StringVar(&opts.ContentID, "cid", "", "off-chain content id of the ciphertext")
	cmd.Flags().StringVar(&opts.EncryptedHash, "hash", "", "integrity hash of the ciphertext")
	cmd.Flags().StringVar(&opts.FileName, "file-name", "", "display file name")
	cmd.Flags().StringVar(&opts.OwnerKey, "owner-key", "", "symmetric key encrypted for the owner (optional)")
	cmd.MarkFlagRequired("cid")
	cmd.MarkFlagRequired("hash")
	cmd.MarkFlagRequired("file-name")

	return cmd
}

func runRegister(opts *RegisterOptions, cmd *cobra.Command) error {
	out := NewFormatter(opts.RootOptions, cmd.OutOrStdout())

	kp, err := signerFromFlags(opts.Keyfile)
	if err != nil {
		return out.Failure(err)
	}

	op := &ledger.Operation{
		Kind:      ledger.OpRegister,
		Caller:    kp.ID,
		Owner:     kp.ID,
		ContentID: opts.ContentID,
		Payload:   opts.OwnerKey,
	}
	if err := signAndVerify(op, kp); err != nil {
		return out.Failure(err)
	}

	l, closeStore, err := openLedger(opts.RootOptions)
	if err != nil {
		return out.Failure(err)
	}
	defer closeStore()

	rec, err := l.Register(cmd.Context(), ledger.RegisterParams{
		Owner:         kp.ID,
		ContentID:     opts.ContentID,
		EncryptedHash: opts.EncryptedHash,
		FileName:      opts.FileName,
		OwnerKeyCopy:  opts.OwnerKey,
	})
	if err != nil {
		return out.Failure(err)
	}

	if opts.Format == "json" {
		return out.Success(recordView(rec))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "registered record %s\n", rec.Addr)
	fmt.Fprintf(cmd.OutOrStdout(), "  owner:      %s\n", rec.Owner)
	fmt.Fprintf(cmd.OutOrStdout(), "  content id: %s\n", rec.ContentID)
	return nil
}
