package handlers

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/imamik/lbprov/internal/provisioning"
	"github.com/imamik/lbprov/internal/resource"
)

// stateFile is the on-disk record of handles produced by apply. Feeding it
// back into the next run skips the steps that already completed.
type stateFile struct {
	Plan      string       `yaml:"plan"`
	Identity  string       `yaml:"identity"`
	Resources []stateEntry `yaml:"resources"`
}

type stateEntry struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`
	Ref  string `yaml:"ref"`
}

// errStateMismatch is returned by loadState when the file was written for a
// plan with a different identity.
var errStateMismatch = errors.New("state file was written for a different configuration")

// loadState reads the handles recorded for the plan with identity. A missing
// file or empty path yields no handles. A file recorded for another identity
// yields no handles and an error wrapping errStateMismatch.
func loadState(path, identity string) (provisioning.Handles, error) {
	handles := provisioning.Handles{}
	if path == "" {
		return handles, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return handles, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state stateFile
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	if state.Identity != identity {
		return provisioning.Handles{}, fmt.Errorf("%w: %s has plan %s (identity %s), want identity %s",
			errStateMismatch, path, state.Plan, state.Identity, identity)
	}
	for _, e := range state.Resources {
		kind, err := resource.ParseKind(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("state file %s: %w", path, err)
		}
		handles[kind] = resource.Handle{Kind: kind, Name: e.Name, Ref: e.Ref}
	}
	return handles, nil
}

// saveState writes handles to path in plan order. An empty path is a no-op.
func saveState(path string, plan *provisioning.Plan, handles provisioning.Handles) error {
	if path == "" {
		return nil
	}
	state := stateFile{Plan: plan.Name(), Identity: plan.Identity()}
	for kind, h := range handles {
		state.Resources = append(state.Resources, stateEntry{Kind: string(kind), Name: h.Name, Ref: h.Ref})
	}
	order := map[string]int{}
	for i, k := range resource.Kinds() {
		order[string(k)] = i
	}
	sort.Slice(state.Resources, func(i, j int) bool {
		return order[state.Resources[i].Kind] < order[state.Resources[j].Kind]
	})

	data, err := yaml.Marshal(&state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}
