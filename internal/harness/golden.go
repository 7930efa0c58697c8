package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the golden-file representation of a scenario run.
// Addresses and identities are replaced with the scenario's symbolic
// labels so the files stay stable and reviewable.
type TraceSnapshot struct {
	Scenario string       `json:"scenario"`
	Policy   string       `json:"policy"`
	Trace    []TraceEvent `json:"trace"`
}

// TraceEvent mirrors model.Event with labels in place of encodings.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	EventID   string `json:"event_id"`
	OpToken   string `json:"op_token"`
	Kind      string `json:"kind"`
	Record    string `json:"record,omitempty"`
	Grant     string `json:"grant,omitempty"`
	Owner     string `json:"owner,omitempty"`
	Granter   string `json:"granter,omitempty"`
	Requester string `json:"requester,omitempty"`
	ContentID string `json:"cid,omitempty"`
	Hash      string `json:"hash,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	Policy    string `json:"policy,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Snapshot builds the golden representation of a result.
func Snapshot(scenario *Scenario, result *Result) *TraceSnapshot {
	policy := scenario.DeletionPolicy
	if policy == "" {
		policy = "retain"
	}

	snap := &TraceSnapshot{
		Scenario: scenario.Name,
		Policy:   policy,
		Trace:    make([]TraceEvent, 0, len(result.Events)),
	}
	for _, ev := range result.Events {
		snap.Trace = append(snap.Trace, TraceEvent{
			Seq:       ev.Seq,
			EventID:   ev.EventID,
			OpToken:   ev.OpToken,
			Kind:      string(ev.Kind),
			Record:    result.label(ev.RecordAddr),
			Grant:     result.label(ev.GrantAddr),
			Owner:     result.label(ev.Owner),
			Granter:   result.label(ev.Granter),
			Requester: result.label(ev.Requester),
			ContentID: ev.ContentID,
			Hash:      ev.EncryptedHash,
			FileName:  ev.FileName,
			Policy:    ev.Policy,
			Timestamp: ev.Timestamp,
		})
	}
	return snap
}

// RunWithGolden executes the scenario, fails the test on any expectation
// mismatch, and compares the labeled trace against the golden file named
// after the scenario under testdata/golden.
func RunWithGolden(t *testing.T, scenario *Scenario) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("run scenario %s: %v", scenario.Name, err)
	}
	snap := Snapshot(scenario, result)
	if !result.Passed() {
		for _, f := range result.Failures {
			t.Errorf("scenario %s: %s", scenario.Name, f)
		}
		t.Logf("scenario %s trace:\n%s", scenario.Name, TraceSummary(snap))
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		t.Fatalf("marshal trace: %v", err)
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
}

// TraceSummary renders a one-line-per-event view, useful in failure
// output when a golden diff is too noisy to read.
func TraceSummary(snap *TraceSnapshot) string {
	out := ""
	for _, ev := range snap.Trace {
		out += fmt.Sprintf("[%d] %s %s %s\n", ev.Seq, ev.Kind, ev.Record, ev.Grant)
	}
	return out
}
