package vault

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// settings is the ambient-only defaults template for a new vault: the
// canonical folder list beyond Mail/ and Calendar/, and an FTS5 tokenizer
// name. Only the folder list is read (by DefaultCanonicalFolders); the
// tokenizer name is not consulted, and the mail and calendar FTS5 tables
// declare no tokenizer, so SQLite's default (unicode61) applies. This is NOT the
// config.json format (spec.md §6); it mirrors the teacher's embedded
// schema.sql pattern for shipping a static asset alongside the binary.
type settings struct {
	CanonicalFolders []string `yaml:"canonical_folders"`
	FTSTokenizer     string   `yaml:"fts_tokenizer"`
}

var defaultSettings = mustLoadDefaults()

func mustLoadDefaults() settings {
	var s settings
	if err := yaml.Unmarshal(defaultsYAML, &s); err != nil {
		panic("vault: embedded defaults.yaml is invalid: " + err.Error())
	}
	return s
}
