// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cli

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/cando-sh/cando/cando"
)

type grantEntry struct {
	Grantee string `yaml:"grantee"`
	Action  string `yaml:"action"`
}

type granteeEdgeEntry struct {
	Grantee   string `yaml:"grantee"`
	GranteeOf string `yaml:"granteeOf"`
}

type actionEdgeEntry struct {
	Main string `yaml:"main"`
	Sub  string `yaml:"sub"`
}

// batchEntry is the YAML shape of a single line in an apply file. Exactly
// one field should be set; toChange reports an error for an empty or
// ambiguous entry.
type batchEntry struct {
	Grant              *grantEntry       `yaml:"grant,omitempty"`
	RemoveGrant        *grantEntry       `yaml:"removeGrant,omitempty"`
	ConnectGrantees    *granteeEdgeEntry `yaml:"connectGrantees,omitempty"`
	DisconnectGrantees *granteeEdgeEntry `yaml:"disconnectGrantees,omitempty"`
	ConnectActions     *actionEdgeEntry  `yaml:"connectActions,omitempty"`
	DisconnectActions  *actionEdgeEntry  `yaml:"disconnectActions,omitempty"`
	AddRoot            string            `yaml:"root,omitempty"`
	RemoveRoot         string            `yaml:"removeRoot,omitempty"`
	RemoveGrantee      string            `yaml:"removeGrantee,omitempty"`
	RemoveAction       string            `yaml:"removeAction,omitempty"`
	Clear              bool              `yaml:"clear,omitempty"`
}

func loadBatch(path string) ([]cando.Change[string, string], error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cando: read batch file: %w", err)
	}

	var entries []batchEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("cando: parse batch file: %w", err)
	}

	batch := make([]cando.Change[string, string], 0, len(entries))
	for i, e := range entries {
		change, err := e.toChange()
		if err != nil {
			return nil, fmt.Errorf("cando: batch entry %d: %w", i, err)
		}
		batch = append(batch, change)
	}
	return batch, nil
}

func (e batchEntry) toChange() (cando.Change[string, string], error) {
	set := 0
	for _, ok := range []bool{
		e.Grant != nil, e.RemoveGrant != nil, e.ConnectGrantees != nil, e.DisconnectGrantees != nil,
		e.ConnectActions != nil, e.DisconnectActions != nil, e.AddRoot != "", e.RemoveRoot != "",
		e.RemoveGrantee != "", e.RemoveAction != "", e.Clear,
	} {
		if ok {
			set++
		}
	}
	if set > 1 {
		return cando.Change[string, string]{}, fmt.Errorf("ambiguous batch entry: %d fields set", set)
	}

	switch {
	case e.Grant != nil:
		return cando.AddGrantChange[string, string](e.Grant.Grantee, e.Grant.Action), nil
	case e.RemoveGrant != nil:
		return cando.RemoveGrantChange[string, string](e.RemoveGrant.Grantee, e.RemoveGrant.Action), nil
	case e.ConnectGrantees != nil:
		return cando.ConnectGranteesChange[string, string](e.ConnectGrantees.Grantee, e.ConnectGrantees.GranteeOf), nil
	case e.DisconnectGrantees != nil:
		return cando.DisconnectGranteesChange[string, string](e.DisconnectGrantees.Grantee, e.DisconnectGrantees.GranteeOf), nil
	case e.ConnectActions != nil:
		return cando.ConnectActionsChange[string, string](e.ConnectActions.Main, e.ConnectActions.Sub), nil
	case e.DisconnectActions != nil:
		return cando.DisconnectActionsChange[string, string](e.DisconnectActions.Main, e.DisconnectActions.Sub), nil
	case e.AddRoot != "":
		return cando.AddRootChange[string, string](e.AddRoot), nil
	case e.RemoveRoot != "":
		return cando.RemoveRootChange[string, string](e.RemoveRoot), nil
	case e.RemoveGrantee != "":
		return cando.RemoveGranteeChange[string, string](e.RemoveGrantee), nil
	case e.RemoveAction != "":
		return cando.RemoveActionChange[string, string](e.RemoveAction), nil
	case e.Clear:
		return cando.ClearChange[string, string](), nil
	default:
		return cando.Change[string, string]{}, fmt.Errorf("empty batch entry")
	}
}
