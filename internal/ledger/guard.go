package ledger

import "github.com/medicrypt/consentledger/internal/identity"

// The guard predicates are pure: they evaluate a condition and either pass
// or return the rejection. Every mutating operation runs its guards inside
// the operation transaction, before any write, so a rejection leaves no
// partial mutation.

// requireCaller rejects with UNAUTHORIZED unless actual is expected.
func requireCaller(expected, actual identity.ID, addr string) error {
	if !expected.Equal(actual) {
		return opErr(ErrCodeUnauthorized, addr,
			"caller %s is not the record owner", actual)
	}
	return nil
}

// requireState rejects with code unless cond holds.
func requireState(cond bool, code OpErrorCode, addr, msg string) error {
	if !cond {
		return opErr(code, addr, "%s", msg)
	}
	return nil
}
