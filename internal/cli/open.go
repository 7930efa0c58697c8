package cli

import (
	"fmt"

	"github.com/medicrypt/consentledger/internal/config"
	"github.com/medicrypt/consentledger/internal/identity"
	"github.com/medicrypt/consentledger/internal/ledger"
	"github.com/medicrypt/consentledger/internal/store"
)

// openLedger loads the config, applies flag overrides, and opens the
// store and ledger. The returned close function must be deferred.
func openLedger(opts *RootOptions) (*ledger.Ledger, func() error, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		cfg, err = config.Load(opts.Config)
		if err != nil {
			return nil, nil, err
		}
	}
	if opts.Store != "" {
		cfg.StorePath = opts.Store
	}

	storeOpts, err := cfg.StoreOptions()
	if err != nil {
		return nil, nil, err
	}
	s, err := store.Open(cfg.StorePath, storeOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return ledger.New(s), s.Close, nil
}

// signerFromFlags resolves the caller's keypair from --keyfile.
// Every mutating command requires one: the caller identity is the key's
// public half, asserted by signing the operation envelope.
func signerFromFlags(keyfile string) (*identity.Keypair, error) {
	if keyfile == "" {
		return nil, fmt.Errorf("--keyfile is required: mutations must be signed by the caller")
	}
	return identity.LoadKeyfile(keyfile)
}

// signAndVerify signs op with the caller's key and verifies the binding
// before dispatch, so a mismatched --caller/--keyfile pair fails here
// rather than as a confusing ledger rejection.
func signAndVerify(op *ledger.Operation, kp *identity.Keypair) error {
	op.Sign(kp)
	return op.Verify()
}

// resolveOwner parses --owner, defaulting to the caller when empty.
// The owner names the record coordinate; it only differs from the caller
// when someone is (incorrectly) poking at another owner's record, which
// the ledger rejects as UNAUTHORIZED.
func resolveOwner(flag string, caller identity.ID) (identity.ID, error) {
	if flag == "" {
		return caller, nil
	}
	owner, err := identity.Parse(flag)
	if err != nil {
		return identity.ID{}, fmt.Errorf("invalid --owner: %w", err)
	}
	return owner, nil
}
