package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medicrypt/consentledger/internal/identity"
)

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	Out string
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "keygen",
		Short:         "Generate a signing keyfile",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Out, "out", "", "path to write the keyfile")
	cmd.MarkFlagRequired("out")

	return cmd
}

func runKeygen(opts *KeygenOptions, cmd *cobra.Command) error {
	out := NewFormatter(opts.RootOptions, cmd.OutOrStdout())

	kp, err := identity.Generate()
	if err != nil {
		return out.Failure(err)
	}
	if err := kp.SaveKeyfile(opts.Out); err != nil {
		return out.Failure(err)
	}

	if opts.Format == "json" {
		return out.Success(map[string]string{
			"identity": kp.ID.String(),
			"keyfile":  opts.Out,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.Out)
	fmt.Fprintf(cmd.OutOrStdout(), "identity: %s\n", kp.ID)
	return nil
}
