// Package binding manages the global account-to-vault binding registry: a
// single JSON file recording which vault each account_id is bound to,
// enforcing that an account can be bound to at most one vault at a time.
package binding

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

// Binding is one entry of the registry file: {account_id, vault_path,
// bound_at} (spec.md §6).
type Binding struct {
	AccountID string    `json:"account_id"`
	VaultPath string    `json:"vault_path"`
	BoundAt   time.Time `json:"bound_at"`
}

// Registry is the global binding file at a caller-supplied path. All writes
// are atomic (write-temp + rename); readers may observe either the pre- or
// post-rename content, never a torn write.
type Registry struct {
	mu   sync.Mutex
	path string
}

// Open returns a Registry backed by path. The file need not exist yet; it
// is created on first write.
func Open(path string) *Registry {
	return &Registry{path: path}
}

func (r *Registry) load() ([]Binding, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vaulterrors.Wrap(vaulterrors.KindRegistryCorrupt, err, "reading binding registry %q", r.path)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var bindings []Binding
	if err := json.Unmarshal(data, &bindings); err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindRegistryCorrupt, err, "parsing binding registry %q", r.path)
	}
	return bindings, nil
}

func (r *Registry) save(bindings []Binding) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return vaulterrors.Wrap(vaulterrors.KindRegistryCorrupt, err, "creating registry directory")
	}
	data, err := json.MarshalIndent(bindings, "", "  ")
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.KindRegistryCorrupt, err, "marshaling binding registry")
	}
	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return vaulterrors.Wrap(vaulterrors.KindRegistryCorrupt, err, "writing binding registry")
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return vaulterrors.Wrap(vaulterrors.KindRegistryCorrupt, err, "renaming binding registry into place")
	}
	return nil
}

// BindAccount binds accountID to vaultPath. Idempotent when accountID is
// already bound to the same vaultPath; fails with
// vaulterrors.KindAccountAlreadyBound when bound to a different vault
// (spec.md §4.5, §8 S1).
func (r *Registry) BindAccount(accountID, vaultPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bindings, err := r.load()
	if err != nil {
		return err
	}

	for i, b := range bindings {
		if b.AccountID == accountID {
			if b.VaultPath == vaultPath {
				return nil
			}
			_ = i
			return vaulterrors.AccountAlreadyBound(accountID, b.VaultPath)
		}
	}

	bindings = append(bindings, Binding{
		AccountID: accountID,
		VaultPath: vaultPath,
		BoundAt:   time.Now().UTC(),
	})
	return r.save(bindings)
}

// UnbindAccount removes accountID's binding. A missing id is a silent
// no-op (spec.md §4.5).
func (r *Registry) UnbindAccount(accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bindings, err := r.load()
	if err != nil {
		return err
	}

	out := bindings[:0]
	for _, b := range bindings {
		if b.AccountID != accountID {
			out = append(out, b)
		}
	}
	if len(out) == len(bindings) {
		return nil
	}
	return r.save(out)
}

// IsAccountBound reports whether accountID has a binding, and if so, which
// vault it is bound to.
func (r *Registry) IsAccountBound(accountID string) (bool, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bindings, err := r.load()
	if err != nil {
		return false, "", err
	}
	for _, b := range bindings {
		if b.AccountID == accountID {
			return true, b.VaultPath, nil
		}
	}
	return false, "", nil
}

// VaultPath returns the vault accountID is bound to, or "" if unbound.
func (r *Registry) VaultPath(accountID string) (string, error) {
	_, path, err := r.IsAccountBound(accountID)
	return path, err
}

// Bindings returns every binding whose VaultPath equals forVault.
func (r *Registry) Bindings(forVault string) ([]Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bindings, err := r.load()
	if err != nil {
		return nil, err
	}
	var out []Binding
	for _, b := range bindings {
		if b.VaultPath == forVault {
			out = append(out, b)
		}
	}
	return out, nil
}

// AllBindings returns every binding in the registry.
func (r *Registry) AllBindings() ([]Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}
