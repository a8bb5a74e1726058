package emlx

import (
	"time"

	"howett.net/plist"
)

// parseApplePlist decodes the trailing Apple property list an .emlx file
// may carry after the RFC 5322 message block (spec.md §4.2 step 7). It
// tolerates malformed or absent trailers by returning ok=false rather than
// an error, since the trailer is metadata, not the message itself.
func parseApplePlist(trailer []byte) (map[string]any, time.Time, bool) {
	var decoded map[string]any
	if _, err := plist.Unmarshal(trailer, &decoded); err != nil {
		return nil, time.Time{}, false
	}
	if len(decoded) == 0 {
		return nil, time.Time{}, false
	}

	var plistDate time.Time
	for _, key := range []string{"date-received", "date-last-viewed", "date-sent"} {
		if v, ok := decoded[key]; ok {
			switch t := v.(type) {
			case time.Time:
				plistDate = t
			case float64:
				plistDate = time.Unix(int64(t), 0)
			case int64:
				plistDate = time.Unix(t, 0)
			}
			if !plistDate.IsZero() {
				break
			}
		}
	}

	return decoded, plistDate, true
}
