// Package emlxheader implements the pure, allocation-light header-parsing
// primitives shared by the emlx parser: RFC 2047 encoded-word decoding,
// RFC 5322 address-list parsing, and threading-header extraction. None of
// these functions touch the filesystem or a database; they operate on
// already-split header values, so they are trivially testable in isolation.
package emlxheader

import (
	"encoding/base64"
	"mime/quotedprintable"
	"regexp"
	"strings"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// minDetectConfidence is the chardet confidence floor below which a sniffed
// charset is discarded in favor of leaving bytes undecoded, grounded on
// wesm-msgvault's ensureUTF8 (same threshold idea, fixed rather than
// length-scaled since bodies here are decoded whole, not streamed).
const minDetectConfidence = 30

// encodedWordRe matches one RFC 2047 encoded-word: =?charset?B|Q?text?=
var encodedWordRe = regexp.MustCompile(`(?i)=\?([^?]+)\?([bq])\?([^?]*)\?=`)

// DecodeEncodedWords decodes all RFC 2047 encoded-words in s, concatenating
// decoded adjacent tokens without inserting whitespace between them (per
// spec.md §4.2 step 4 / §9's "encoded-word concatenation" note), while
// leaving any interleaved literal text (and the whitespace inside it)
// untouched.
func DecodeEncodedWords(s string) string {
	if !strings.Contains(s, "=?") {
		return s
	}

	var out strings.Builder
	last := 0
	prevWasEncodedWord := false

	matches := encodedWordRe.FindAllStringSubmatchIndex(s, -1)
	for _, m := range matches {
		start, end := m[0], m[1]
		between := s[last:start]

		// If the only thing between this encoded-word and the previous one
		// is whitespace, drop it so adjacent encoded-words join seamlessly.
		if prevWasEncodedWord && strings.TrimSpace(between) == "" {
			// drop the whitespace
		} else {
			out.WriteString(between)
		}

		charsetName := s[m[2]:m[3]]
		encoding := strings.ToLower(s[m[4]:m[5]])
		text := s[m[6]:m[7]]

		decoded, ok := decodeWord(charsetName, encoding, text)
		if ok {
			out.WriteString(decoded)
			prevWasEncodedWord = true
		} else {
			// Not decodable: keep the raw token verbatim.
			out.WriteString(s[start:end])
			prevWasEncodedWord = false
		}

		last = end
	}
	out.WriteString(s[last:])
	return out.String()
}

func decodeWord(charsetName, encoding, text string) (string, bool) {
	var raw []byte
	switch encoding {
	case "b":
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return "", false
		}
		raw = decoded
	case "q":
		// RFC 2047 Q-encoding uses '_' for space, unlike body quoted-printable.
		text = strings.ReplaceAll(text, "_", " ")
		decoded, err := quotedprintableDecode(text)
		if err != nil {
			return "", false
		}
		raw = decoded
	default:
		return "", false
	}

	decoded, err := DecodeCharset(charsetName, raw)
	if err != nil {
		return "", false
	}
	return decoded, true
}

func quotedprintableDecode(s string) ([]byte, error) {
	r := quotedprintable.NewReader(strings.NewReader(s))
	var out []byte
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			// quotedprintable.Reader reports io.EOF at the end, and is
			// lenient with malformed trailing bytes; either way, return
			// what was decoded so far.
			break
		}
	}
	return out, nil
}

// DecodeCharset converts raw bytes declared as charsetName into UTF-8.
// utf-8 (and its aliases) is required by spec.md §4.2 step 4; everything
// else is best-effort via golang.org/x/text, falling back to returning the
// raw bytes unconverted if the charset is unrecognized.
func DecodeCharset(charsetName string, raw []byte) (string, error) {
	name := strings.ToLower(strings.TrimSpace(charsetName))
	switch name {
	case "utf-8", "utf8", "us-ascii", "ascii", "":
		return string(raw), nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder().String(string(raw))
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15.NewDecoder().String(string(raw))
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().String(string(raw))
	case "shift_jis", "shift-jis", "sjis":
		return japanese.ShiftJIS.NewDecoder().String(string(raw))
	case "euc-jp":
		return japanese.EUCJP.NewDecoder().String(string(raw))
	case "euc-kr":
		return korean.EUCKR.NewDecoder().String(string(raw))
	case "gbk", "gb2312":
		return simplifiedchinese.GBK.NewDecoder().String(string(raw))
	case "big5":
		return traditionalchinese.Big5.NewDecoder().String(string(raw))
	default:
		return string(raw), nil
	}
}

// IsRecognizedCharset reports whether DecodeCharset has a dedicated decoder
// for charsetName, as opposed to falling back to passing raw bytes through
// unconverted. Callers that need to decide whether to sniff a charset (the
// body path, which unlike encoded-words may lack a declared charset
// entirely) use this to tell "recognized as UTF-8/ASCII" apart from
// "unrecognized, decoded as a no-op".
func IsRecognizedCharset(charsetName string) bool {
	switch strings.ToLower(strings.TrimSpace(charsetName)) {
	case "utf-8", "utf8", "us-ascii", "ascii", "",
		"iso-8859-1", "latin1", "iso-8859-15", "latin9",
		"windows-1252", "cp1252", "shift_jis", "shift-jis", "sjis",
		"euc-jp", "euc-kr", "gbk", "gb2312", "big5":
		return true
	default:
		return false
	}
}

// DetectCharset sniffs raw's charset with chardet for bodies that declare no
// charset (or an unrecognized one), grounded on wesm-msgvault's
// internal/sync/sync.go ensureUTF8 routine. Returns "" if detection fails or
// falls below minDetectConfidence, in which case the caller should leave raw
// undecoded rather than guess.
func DetectCharset(raw []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || result.Confidence < minDetectConfidence {
		return ""
	}
	name := strings.ToLower(result.Charset)
	if !IsRecognizedCharset(name) {
		return ""
	}
	return name
}
