// Package vault resolves configured vault directories and finds the
// markdown essays inside them.
package vault

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"morph/internal/storage"
)

// Manager holds the vaults configured for this process and resolves paths
// within them.
type Manager struct {
	vaultRepo storage.VaultStore
	vaults    map[string]storage.VaultRecord // by name
}

// NewManager registers one vault per root directory. A vault is named
// after the base name of its root, so two roots with the same base name
// are rejected.
func NewManager(ctx context.Context, vaultRepo storage.VaultStore, roots ...string) (*Manager, error) {
	m := &Manager{
		vaultRepo: vaultRepo,
		vaults:    make(map[string]storage.VaultRecord, len(roots)),
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve vault path %s: %w", root, err)
		}
		name := filepath.Base(abs)
		if _, dup := m.vaults[name]; dup {
			return nil, fmt.Errorf("duplicate vault name %q for %s", name, abs)
		}

		vault, err := vaultRepo.GetOrCreateByName(ctx, name, abs)
		if err != nil {
			return nil, fmt.Errorf("failed to create vault %s: %w", name, err)
		}
		m.vaults[name] = vault
	}

	return m, nil
}

// VaultByName returns the vault record for the given vault name.
func (m *Manager) VaultByName(name string) (storage.VaultRecord, error) {
	vault, ok := m.vaults[name]
	if !ok {
		return storage.VaultRecord{}, fmt.Errorf("vault not found: %s", name)
	}
	return vault, nil
}

// VaultByID returns the configured vault with the given id.
func (m *Manager) VaultByID(id string) (storage.VaultRecord, error) {
	for _, vault := range m.vaults {
		if vault.ID == id {
			return vault, nil
		}
	}
	return storage.VaultRecord{}, fmt.Errorf("vault not found: %s", id)
}

// Vaults returns the configured vaults ordered by name.
func (m *Manager) Vaults() []storage.VaultRecord {
	out := make([]storage.VaultRecord, 0, len(m.vaults))
	for _, v := range m.vaults {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AbsPath returns the absolute path for a file given its vault ID and
// relative path, or "" for an unknown vault.
func (m *Manager) AbsPath(vaultID, relPath string) string {
	vault, err := m.VaultByID(vaultID)
	if err != nil {
		return ""
	}
	return filepath.Join(vault.RootPath, filepath.FromSlash(relPath))
}
