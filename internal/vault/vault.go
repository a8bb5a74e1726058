// Package vault manages the on-disk layout of a swiftea vault: the hidden
// .swiftea/ directory (config.json, swiftea.db) and the visible Swiftea/
// data folders, plus vault discovery by walking ancestor directories.
package vault

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

const (
	configDirName  = ".swiftea"
	configFileName = "config.json"
	dbFileName     = "swiftea.db"
	dataDirName    = "Swiftea"

	// CurrentVersion is the config.json "version" field written by
	// initializeVault.
	CurrentVersion = "1.0"
)

// AccountType is one of the two kinds of account a vault can be bound to.
type AccountType string

const (
	AccountMail     AccountType = "mail"
	AccountCalendar AccountType = "calendar"
)

// BoundAccount is one entry of config.json's "accounts" array.
type BoundAccount struct {
	ID   string      `json:"id"`
	Type AccountType `json:"type"`
	Name string      `json:"name"`
}

// Config is the bit-exact structure persisted at .swiftea/config.json.
type Config struct {
	Version  string         `json:"version"`
	Accounts []BoundAccount `json:"accounts"`
}

// DefaultCanonicalFolders lists the folders created under Swiftea/ by
// initializeVault beyond the two named explicitly in spec.md §6 (Mail/,
// Calendar/). Sourced from the embedded defaults template (defaults.go).
func DefaultCanonicalFolders() []string {
	return defaultSettings.CanonicalFolders
}

// Paths resolves every on-disk location under a vault root.
type Paths struct {
	Root string
}

func (p Paths) ConfigDir() string    { return filepath.Join(p.Root, configDirName) }
func (p Paths) ConfigFile() string   { return filepath.Join(p.Root, configDirName, configFileName) }
func (p Paths) DBFile() string       { return filepath.Join(p.Root, configDirName, dbFileName) }
func (p Paths) DataDir() string      { return filepath.Join(p.Root, dataDirName) }
func (p Paths) MailDir() string      { return filepath.Join(p.Root, dataDirName, "Mail") }
func (p Paths) CalendarDir() string  { return filepath.Join(p.Root, dataDirName, "Calendar") }
func (p Paths) Folder(name string) string {
	return filepath.Join(p.Root, dataDirName, name)
}

// IsVault reports whether path's .swiftea/config.json exists.
func IsVault(path string) bool {
	_, err := os.Stat(Paths{Root: path}.ConfigFile())
	return err == nil
}

// FindVaultRoot walks the ancestors of from (inclusive), returning the
// first directory that IsVault. Returns ("", false) if none is found before
// reaching the filesystem root.
func FindVaultRoot(from string) (string, bool) {
	abs, err := filepath.Abs(from)
	if err != nil {
		return "", false
	}
	dir := abs
	for {
		if IsVault(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// InitializeVault creates a new vault at path: .swiftea/ with a default
// config.json and an empty swiftea.db file, plus the canonical Swiftea/
// subfolders. If force is false and the vault already exists, returns
// vaulterrors.KindAlreadyExists. If force is true, config is rewritten and
// subfolders are ensured, but no existing data is deleted.
func InitializeVault(path string, force bool) (*Config, error) {
	paths := Paths{Root: path}

	if IsVault(path) && !force {
		return nil, vaulterrors.New(vaulterrors.KindAlreadyExists, "vault already exists at %q", path)
	}

	if err := os.MkdirAll(paths.ConfigDir(), 0o755); err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindConfigInvalid, err, "creating %q", paths.ConfigDir())
	}

	cfg := &Config{Version: CurrentVersion, Accounts: []BoundAccount{}}
	if err := WriteConfig(path, cfg); err != nil {
		return nil, err
	}

	if _, err := os.Stat(paths.DBFile()); os.IsNotExist(err) {
		f, err := os.OpenFile(paths.DBFile(), os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.KindConfigInvalid, err, "creating %q", paths.DBFile())
		}
		f.Close()
	}

	folders := append([]string{"Mail", "Calendar"}, DefaultCanonicalFolders()...)
	for _, name := range folders {
		if err := os.MkdirAll(paths.Folder(name), 0o755); err != nil {
			return nil, vaulterrors.Wrap(vaulterrors.KindConfigInvalid, err, "creating folder %q", name)
		}
	}

	return cfg, nil
}

// ReadConfig loads and parses .swiftea/config.json under path.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(Paths{Root: path}.ConfigFile())
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindNotAVault, err, "reading config at %q", path)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.KindConfigInvalid, err, "parsing config at %q", path)
	}
	return &cfg, nil
}

// WriteConfig persists cfg to .swiftea/config.json with stable key order
// (struct field order) and pretty formatting, per spec.md §4.4. Written via
// a temp-file-then-rename so a crash mid-write can never leave config.json
// truncated (matching internal/binding's registry save pattern).
func WriteConfig(path string, cfg *Config) error {
	paths := Paths{Root: path}
	if err := os.MkdirAll(paths.ConfigDir(), 0o755); err != nil {
		return vaulterrors.Wrap(vaulterrors.KindConfigInvalid, err, "creating %q", paths.ConfigDir())
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.KindConfigInvalid, err, "marshaling config")
	}
	configFile := paths.ConfigFile()
	tmpPath := configFile + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return vaulterrors.Wrap(vaulterrors.KindConfigInvalid, err, "writing config at %q", path)
	}
	if err := os.Rename(tmpPath, configFile); err != nil {
		os.Remove(tmpPath)
		return vaulterrors.Wrap(vaulterrors.KindConfigInvalid, err, "renaming config into place at %q", path)
	}
	return nil
}

// Context is a resolved vault: its root path plus loaded config.
type Context struct {
	Root   string
	Config *Config
}

// Require resolves a vault context starting the search from at. It fails
// with vaulterrors.KindNoVaultContext, whose message names the searched
// path and instructs the user to run the init subcommand (spec.md §4.4,
// §6 — the message text is part of the external interface).
func Require(at string) (*Context, error) {
	root, ok := FindVaultRoot(at)
	if !ok {
		return nil, vaulterrors.NoVaultContext(at)
	}
	cfg, err := ReadConfig(root)
	if err != nil {
		return nil, err
	}
	return &Context{Root: root, Config: cfg}, nil
}

func (p Paths) String() string { return p.Root }
