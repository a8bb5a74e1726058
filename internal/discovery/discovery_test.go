package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

func setupMailTree(t *testing.T, version string) string {
	t.Helper()
	root := t.TempDir()
	mailData := filepath.Join(root, version, "MailData")
	if err := os.MkdirAll(mailData, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(mailData, envelopeIndexFileName), []byte("sqlite"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return root
}

func TestDiscoverFromMailBasePicksHighestVersion(t *testing.T) {
	root := t.TempDir()
	for _, v := range []string{"V9", "V10", "V11"} {
		md := filepath.Join(root, v, "MailData")
		if err := os.MkdirAll(md, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(md, envelopeIndexFileName), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	info, err := Discover("", root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.VersionDirectory != "V11" {
		t.Fatalf("expected V11, got %q", info.VersionDirectory)
	}
	if info.MailBasePath != root {
		t.Fatalf("expected mailBasePath %q, got %q", root, info.MailBasePath)
	}
}

func TestDiscoverMailDirectoryNotFound(t *testing.T) {
	_, err := Discover("", filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected error")
	}
	ve, ok := err.(*vaulterrors.Error)
	if !ok || ve.Kind != vaulterrors.KindMailDirectoryNotFound {
		t.Fatalf("expected mailDirectoryNotFound, got %v", err)
	}
}

func TestDiscoverNoVersionDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "NotAVersion"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	_, err := Discover("", root)
	if err == nil {
		t.Fatal("expected error")
	}
	ve, ok := err.(*vaulterrors.Error)
	if !ok || ve.Kind != vaulterrors.KindNoVersionDirectory {
		t.Fatalf("expected noVersionDirectory, got %v", err)
	}
}

func TestDiscoverFromUserPathExtractsVersion(t *testing.T) {
	root := setupMailTree(t, "V12")
	userPath := filepath.Join(root, "V12", "MailData", envelopeIndexFileName)

	info, err := Discover(userPath, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.VersionDirectory != "V12" {
		t.Fatalf("expected V12, got %q", info.VersionDirectory)
	}
	if info.EnvelopeIndexPath != userPath {
		t.Fatalf("expected path preserved, got %q", info.EnvelopeIndexPath)
	}
}

func TestDiscoverFromUserPathDefaultsVersion(t *testing.T) {
	root := t.TempDir()
	userPath := filepath.Join(root, "flat", "Envelope Index")
	if err := os.MkdirAll(filepath.Dir(userPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(userPath, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	info, err := Discover(userPath, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.VersionDirectory != defaultVersionDirectory {
		t.Fatalf("expected default %q, got %q", defaultVersionDirectory, info.VersionDirectory)
	}
}

func TestDiscoverEnvelopeIndexNotFound(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "missing"), "")
	if err == nil {
		t.Fatal("expected error")
	}
	ve, ok := err.(*vaulterrors.Error)
	if !ok || ve.Kind != vaulterrors.KindEnvelopeIndexNotFound {
		t.Fatalf("expected envelopeIndexNotFound, got %v", err)
	}
}

func TestEmlxPath(t *testing.T) {
	got := EmlxPath("abc123", "/vault/Mail/V10/Mailboxes/INBOX.mbox")
	want := filepath.Join("/vault/Mail/V10/Mailboxes/INBOX.mbox", "Messages", "abc123.emlx")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
