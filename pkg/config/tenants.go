package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/webordinary/switchboard/pkg/types"
)

// TenantEntry maps one sender identity to its tenant and repository.
type TenantEntry struct {
	Identity  string `yaml:"identity"`
	ProjectID string `yaml:"projectId"`
	UserID    string `yaml:"userId"`
	RepoURL   string `yaml:"repoUrl,omitempty"`
}

// TenantKey returns the entry's tenant key.
func (e *TenantEntry) TenantKey() types.TenantKey {
	return types.TenantKey{ProjectID: e.ProjectID, UserID: e.UserID}
}

// TenantTable is the static identity→tenant configuration table.
type TenantTable struct {
	byIdentity map[string]*TenantEntry
	byTenant   map[types.TenantKey]*TenantEntry
}

// NewTenantTable builds a table from entries. Later duplicate identities
// win, matching file order semantics.
func NewTenantTable(entries []TenantEntry) (*TenantTable, error) {
	t := &TenantTable{
		byIdentity: make(map[string]*TenantEntry, len(entries)),
		byTenant:   make(map[types.TenantKey]*TenantEntry, len(entries)),
	}
	for i := range entries {
		e := &entries[i]
		if e.Identity == "" {
			return nil, fmt.Errorf("tenant entry %d: missing identity", i)
		}
		if !e.TenantKey().Valid() {
			return nil, fmt.Errorf("tenant entry %q: invalid tenant key %s", e.Identity, e.TenantKey())
		}
		t.byIdentity[e.Identity] = e
		t.byTenant[e.TenantKey()] = e
	}
	return t, nil
}

// LoadTenantTable reads the YAML tenant-config file. An empty path yields
// an empty table.
func LoadTenantTable(path string) (*TenantTable, error) {
	if path == "" {
		return NewTenantTable(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant config: %w", err)
	}
	var file struct {
		Tenants []TenantEntry `yaml:"tenants"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tenant config: %w", err)
	}
	return NewTenantTable(file.Tenants)
}

// ByIdentity looks up the entry for a sender identity.
func (t *TenantTable) ByIdentity(identity string) (*TenantEntry, bool) {
	e, ok := t.byIdentity[identity]
	return e, ok
}

// ByTenant looks up the entry for a tenant key.
func (t *TenantTable) ByTenant(key types.TenantKey) (*TenantEntry, bool) {
	e, ok := t.byTenant[key]
	return e, ok
}
