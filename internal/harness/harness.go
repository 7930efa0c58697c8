// Package harness executes declarative conformance scenarios against a
// real ledger backed by a fresh in-memory store.
//
// Scenarios reference identities by symbolic name; the harness resolves
// them through deterministic test keypairs and runs every step through
// the same code path production callers use. The resulting event trace
// is compared against golden files with addresses and identities mapped
// back to their symbolic labels, which keeps the golden files readable
// and independent of the concrete hash and key encodings.
package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/medicrypt/consentledger/internal/identity"
	"github.com/medicrypt/consentledger/internal/ledger"
	"github.com/medicrypt/consentledger/internal/model"
	"github.com/medicrypt/consentledger/internal/store"
	"github.com/medicrypt/consentledger/internal/testutil"
)

// baseTime anchors every scenario clock. Each step advances the clock by
// one second, so the i-th step always executes at baseTime+i seconds.
var baseTime = time.Unix(1700000000, 0).UTC()

// Result holds the outcome of running a scenario.
type Result struct {
	// Steps mirrors the scenario's steps with their actual outcomes.
	Steps []StepResult

	// Events is the full event log after the final step, in seq order.
	Events []model.Event

	// Failures lists expectation mismatches, one per failing step.
	// Empty means the scenario passed.
	Failures []string

	// labels maps encoded addresses and identities back to the
	// symbolic names the scenario used.
	labels map[string]string
}

// Passed reports whether every step met its expectation.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

// StepResult records what one step actually did.
type StepResult struct {
	Op     string
	Caller string
	Err    error
	Code   ledger.OpErrorCode
}

// Run executes the scenario against a fresh in-memory store and returns
// the collected trace. An error return means the harness itself failed
// (bad scenario, store breakage); expectation mismatches are reported in
// Result.Failures instead.
func Run(scenario *Scenario) (*Result, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	deletion := model.DeletionRetain
	if scenario.DeletionPolicy != "" {
		p, err := model.ParseDeletionPolicy(scenario.DeletionPolicy)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
		}
		deletion = p
	}
	reregister := model.ReregisterDisallow
	if scenario.ReregisterPolicy != "" {
		p, err := model.ParseReregisterPolicy(scenario.ReregisterPolicy)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
		}
		reregister = p
	}

	st, err := store.Open(":memory:",
		store.WithDeletionPolicy(deletion),
		store.WithReregisterPolicy(reregister),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: open store: %w", scenario.Name, err)
	}
	defer st.Close()

	clock := testutil.NewFixedClock(baseTime)
	led := ledger.New(st,
		ledger.WithClock(clock),
		ledger.WithTokenGenerator(testutil.NewSeqTokenGenerator("tok")),
	)

	result := &Result{labels: make(map[string]string)}
	ctx := context.Background()

	ids := make(map[string]identity.ID)
	resolve := func(name string) identity.ID {
		id, ok := ids[name]
		if !ok {
			id = testutil.DeterministicID(name)
			ids[name] = id
			result.labels[id.String()] = name
		}
		return id
	}

	for i, step := range scenario.Steps {
		ownerName := step.Owner
		if ownerName == "" {
			ownerName = step.Caller
		}
		caller := resolve(step.Caller)
		owner := resolve(ownerName)

		result.labelAddresses(owner, ownerName, step, resolve)

		var stepErr error
		switch step.Op {
		case "register":
			_, stepErr = led.Register(ctx, ledger.RegisterParams{
				Owner:         caller,
				ContentID:     step.ContentID,
				EncryptedHash: step.Hash,
				FileName:      step.FileName,
				OwnerKeyCopy:  step.OwnerKey,
			})
		case "grant":
			_, stepErr = led.Grant(ctx, ledger.GrantParams{
				Caller:         caller,
				Owner:          owner,
				ContentID:      step.ContentID,
				Requester:      resolve(step.Requester),
				ReencryptedKey: step.Key,
			})
		case "revoke":
			stepErr = led.Revoke(ctx, ledger.RevokeParams{
				Caller:    caller,
				Owner:     owner,
				ContentID: step.ContentID,
				Requester: resolve(step.Requester),
			})
		case "close":
			stepErr = led.Close(ctx, ledger.CloseParams{
				Caller:    caller,
				Owner:     owner,
				ContentID: step.ContentID,
			})
		}

		code := ledger.CodeOf(stepErr)
		result.Steps = append(result.Steps, StepResult{
			Op:     step.Op,
			Caller: step.Caller,
			Err:    stepErr,
			Code:   code,
		})

		switch {
		case step.Expect == "" && stepErr != nil:
			result.Failures = append(result.Failures,
				fmt.Sprintf("step %d (%s): expected success, got %v", i, step.Op, stepErr))
		case step.Expect != "" && string(code) != step.Expect:
			result.Failures = append(result.Failures,
				fmt.Sprintf("step %d (%s): expected %s, got code %q (err: %v)",
					i, step.Op, step.Expect, code, stepErr))
		}

		clock.Advance(time.Second)
	}

	events, err := st.EventsSince(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: read events: %w", scenario.Name, err)
	}
	result.Events = events
	return result, nil
}

// labelAddresses records symbolic labels for the record and grant
// addresses a step touches. Register steps always use the caller as
// owner; grant and revoke also label the grant address. Derivation
// failures (oversized cid) are ignored, those steps never emit events.
func (r *Result) labelAddresses(owner identity.ID, ownerName string, step Step, resolve func(string) identity.ID) {
	target := owner
	targetName := ownerName
	if step.Op == "register" {
		target = resolve(step.Caller)
		targetName = step.Caller
	}

	recordAddr, err := ledger.RecordAddress(target, step.ContentID)
	if err != nil {
		return
	}
	r.labels[recordAddr.String()] = fmt.Sprintf("record:%s/%s", targetName, step.ContentID)

	if step.Requester != "" {
		grantAddr, err := ledger.GrantAddress(recordAddr, resolve(step.Requester))
		if err != nil {
			return
		}
		r.labels[grantAddr.String()] = fmt.Sprintf("grant:%s/%s/%s", targetName, step.ContentID, step.Requester)
	}
}

// label maps an encoded address or identity to its symbolic name,
// falling back to the raw encoding for anything the scenario never
// referenced.
func (r *Result) label(encoded string) string {
	if encoded == "" {
		return ""
	}
	if l, ok := r.labels[encoded]; ok {
		return l
	}
	return encoded
}
