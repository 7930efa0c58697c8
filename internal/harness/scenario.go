package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is a declarative conformance test: a sequence of ledger
// operations with expected outcomes. Identities are referenced by name
// and resolved to deterministic keypairs, so the same scenario always
// produces the same addresses and the same event trace.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description,omitempty"`

	// DeletionPolicy configures the store ("retain" or "reclaim").
	// Empty defaults to "retain".
	DeletionPolicy string `yaml:"deletion_policy,omitempty"`

	// ReregisterPolicy configures tombstone handling ("disallow" or
	// "allow"). Empty defaults to "disallow".
	ReregisterPolicy string `yaml:"reregister_policy,omitempty"`

	// Steps run in order against a fresh in-memory store.
	Steps []Step `yaml:"steps"`
}

// Step is one ledger operation. Caller, Owner and Requester are symbolic
// identity names, not encoded keys.
type Step struct {
	// Op is one of "register", "grant", "revoke", "close".
	Op string `yaml:"op"`

	// Caller signs the operation.
	Caller string `yaml:"caller"`

	// Owner names the record owner. Empty defaults to Caller.
	Owner string `yaml:"owner,omitempty"`

	// ContentID locates the record together with Owner.
	ContentID string `yaml:"cid"`

	// Register-only fields.
	Hash     string `yaml:"hash,omitempty"`
	FileName string `yaml:"file_name,omitempty"`
	OwnerKey string `yaml:"owner_key,omitempty"`

	// Grant/revoke target.
	Requester string `yaml:"requester,omitempty"`

	// Key is the re-encrypted key material for a grant.
	Key string `yaml:"key,omitempty"`

	// Expect is the error code the step must fail with
	// (e.g. "ALREADY_EXISTS"). Empty means the step must succeed.
	Expect string `yaml:"expect,omitempty"`
}

var validOps = map[string]bool{
	"register": true,
	"grant":    true,
	"revoke":   true,
	"close":    true,
}

// Validate checks structural requirements before execution.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario missing name")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}
	for i, step := range s.Steps {
		if !validOps[step.Op] {
			return fmt.Errorf("scenario %q step %d: unknown op %q", s.Name, i, step.Op)
		}
		if step.Caller == "" {
			return fmt.Errorf("scenario %q step %d: missing caller", s.Name, i)
		}
		if step.ContentID == "" {
			return fmt.Errorf("scenario %q step %d: missing cid", s.Name, i)
		}
		if (step.Op == "grant" || step.Op == "revoke") && step.Requester == "" {
			return fmt.Errorf("scenario %q step %d: %s requires a requester", s.Name, i, step.Op)
		}
	}
	return nil
}

// LoadScenario parses a scenario from a YAML file. Unknown fields are
// rejected so typos in scenario files fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScenarioDir loads every *.yaml file in dir, sorted by filename.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
