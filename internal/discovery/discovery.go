// Package discovery locates Apple Mail's on-disk Envelope Index store: the
// mail data directory, its version subdirectory (V10, V11, ...), and the
// Envelope Index SQLite file itself.
package discovery

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

const (
	defaultVersionDirectory = "V10"
	envelopeIndexFileName   = "Envelope Index"
	mailDataDirName         = "MailData"
)

var versionDirRe = regexp.MustCompile(`^V(\d+)$`)

// EnvelopeIndexInfo is the resolved location of a user's Envelope Index
// store (spec.md §4.6).
type EnvelopeIndexInfo struct {
	EnvelopeIndexPath string
	VersionDirectory  string
	MailBasePath      string
	MailDataPath      string
}

// Discover resolves an EnvelopeIndexInfo. When userPath is non-empty, it is
// used directly as the Envelope Index file path; otherwise the default mail
// directory (mailBasePath, e.g. "~/Library/Mail") is scanned for the
// highest-numbered V<N> subdirectory.
func Discover(userPath, mailBasePath string) (*EnvelopeIndexInfo, error) {
	if userPath != "" {
		return discoverFromUserPath(userPath)
	}
	return discoverFromMailBase(mailBasePath)
}

func discoverFromUserPath(userPath string) (*EnvelopeIndexInfo, error) {
	if _, err := os.Stat(userPath); err != nil {
		if os.IsPermission(err) {
			return nil, vaulterrors.PermissionDenied(userPath, err)
		}
		return nil, vaulterrors.Wrap(vaulterrors.KindEnvelopeIndexNotFound, err, "envelope index %q", userPath)
	}

	versionDir := extractVersionDirectory(userPath)
	mailBasePath, mailDataPath := derivePaths(userPath, versionDir)

	return &EnvelopeIndexInfo{
		EnvelopeIndexPath: userPath,
		VersionDirectory:  versionDir,
		MailBasePath:      mailBasePath,
		MailDataPath:      mailDataPath,
	}, nil
}

func discoverFromMailBase(mailBasePath string) (*EnvelopeIndexInfo, error) {
	entries, err := os.ReadDir(mailBasePath)
	if err != nil {
		if os.IsPermission(err) {
			return nil, vaulterrors.PermissionDenied(mailBasePath, err)
		}
		return nil, vaulterrors.Wrap(vaulterrors.KindMailDirectoryNotFound, err, "mail directory %q", mailBasePath)
	}

	versionDir, ok := highestVersionDirectory(entries)
	if !ok {
		return nil, vaulterrors.New(vaulterrors.KindNoVersionDirectory, "no V<N> directory found under %q", mailBasePath)
	}

	mailDataPath := filepath.Join(mailBasePath, versionDir, mailDataDirName)
	envelopeIndexPath := filepath.Join(mailDataPath, envelopeIndexFileName)

	if _, err := os.Stat(envelopeIndexPath); err != nil {
		if os.IsPermission(err) {
			return nil, vaulterrors.PermissionDenied(envelopeIndexPath, err)
		}
		return nil, vaulterrors.Wrap(vaulterrors.KindEnvelopeIndexNotFound, err, "envelope index %q", envelopeIndexPath)
	}

	return &EnvelopeIndexInfo{
		EnvelopeIndexPath: envelopeIndexPath,
		VersionDirectory:  versionDir,
		MailBasePath:      mailBasePath,
		MailDataPath:      mailDataPath,
	}, nil
}

func highestVersionDirectory(entries []os.DirEntry) (string, bool) {
	var versions []int
	byNumber := map[int]string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := versionDirRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		versions = append(versions, n)
		byNumber[n] = e.Name()
	}
	if len(versions) == 0 {
		return "", false
	}
	sort.Ints(versions)
	return byNumber[versions[len(versions)-1]], true
}

// extractVersionDirectory matches V\d+ against each ancestor path component,
// nearest-first, defaulting to "V10" when none match (spec.md §4.6).
func extractVersionDirectory(path string) string {
	dir := filepath.Dir(path)
	for dir != "" && dir != string(filepath.Separator) && dir != "." {
		base := filepath.Base(dir)
		if versionDirRe.MatchString(base) {
			return base
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return defaultVersionDirectory
}

// derivePaths reconstructs mailBasePath/mailDataPath from an arbitrary
// Envelope Index path, by walking up to the nearest ancestor named MailData
// (case-insensitively) if present, else assuming the conventional
// "<mailBase>/<versionDir>/MailData/Envelope Index" layout. versionDir is
// not consulted.
func derivePaths(envelopeIndexPath, versionDir string) (mailBasePath, mailDataPath string) {
	dir := filepath.Dir(envelopeIndexPath)
	for dir != "" && dir != string(filepath.Separator) && dir != "." {
		if strings.EqualFold(filepath.Base(dir), mailDataDirName) {
			mailDataPath = dir
			versionDirPath := filepath.Dir(dir)
			mailBasePath = filepath.Dir(versionDirPath)
			return mailBasePath, mailDataPath
		}
		dir = filepath.Dir(dir)
	}
	// No MailData ancestor found: fall back to the conventional layout
	// relative to the Envelope Index file's own directory.
	mailDataPath = filepath.Dir(envelopeIndexPath)
	mailBasePath = filepath.Dir(filepath.Dir(mailDataPath))
	return mailBasePath, mailDataPath
}

// EmlxPath resolves the on-disk path of a message's .emlx file (spec.md
// §4.6): mailboxPath + "/Messages/" + messageId + ".emlx".
func EmlxPath(messageID, mailboxPath string) string {
	return filepath.Join(mailboxPath, "Messages", messageID+".emlx")
}
