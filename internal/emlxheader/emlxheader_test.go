package emlxheader

import (
	"reflect"
	"testing"
)

func TestDecodeEncodedWordsBase64UTF8(t *testing.T) {
	// "Jürgen Müller" base64-encoded as UTF-8, split across two
	// adjacent encoded-words the way real MUAs sometimes fold them. The
	// space belongs to the first word ("Jürgen "), since the whitespace
	// between adjacent encoded-words is dropped.
	in := "=?UTF-8?B?SsO8cmdlbiA=?= =?UTF-8?B?TcO8bGxlcg==?="
	got := DecodeEncodedWords(in)
	want := "Jürgen Müller"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestDecodeEncodedWordsQuotedPrintable(t *testing.T) {
	in := "=?UTF-8?Q?Caf=C3=A9_meeting?="
	got := DecodeEncodedWords(in)
	want := "Café meeting"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestDecodeEncodedWordsPlainTextUnaffected(t *testing.T) {
	in := "Plain subject, no encoding"
	if got := DecodeEncodedWords(in); got != in {
		t.Fatalf("got %q want unchanged %q", got, in)
	}
}

func TestParseAddressListVariants(t *testing.T) {
	in := `bare@host.com, Display Name <disp@host.com>, "Quoted, Name" <q@host.com>`
	got := ParseAddressList(in)
	want := []Address{
		{Email: "bare@host.com"},
		{Name: "Display Name", Email: "disp@host.com"},
		{Name: "Quoted, Name", Email: "q@host.com"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

func TestParseAddressListEncodedDisplayName(t *testing.T) {
	in := `=?UTF-8?B?SsO8cmdlbg==?= <jurgen@example.de>`
	got := ParseAddressList(in)
	if len(got) != 1 {
		t.Fatalf("expected 1 address, got %d", len(got))
	}
	if got[0].Name != "Jürgen" || got[0].Email != "jurgen@example.de" {
		t.Fatalf("got %#v", got[0])
	}
}

func TestAddressDisplayString(t *testing.T) {
	withName := Address{Name: "Bob", Email: "bob@example.com"}
	if got := withName.DisplayString(); got != "Bob <bob@example.com>" {
		t.Fatalf("got %q", got)
	}
	bare := Address{Email: "bob@example.com"}
	if got := bare.DisplayString(); got != "bob@example.com" {
		t.Fatalf("got %q", got)
	}
}

func TestParseThreadingDeduplicatesReferences(t *testing.T) {
	th := ParseThreading("<mid@x>", "<parent@x>", "<root@x> <parent@x> <root@x>")
	if th.MessageID != "<mid@x>" || th.InReplyTo != "<parent@x>" {
		t.Fatalf("got %#v", th)
	}
	want := []string{"<root@x>", "<parent@x>"}
	if !reflect.DeepEqual(th.References, want) {
		t.Fatalf("got %#v want %#v", th.References, want)
	}
}

func TestNormalizeMessageIDToken(t *testing.T) {
	if got := NormalizeMessageIDToken("<Root@Example.COM>"); got != "root@example.com" {
		t.Fatalf("got %q", got)
	}
}
