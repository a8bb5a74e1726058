package maildb

import (
	"fmt"
	"os"

	"github.com/dwrekofc/swiftea/internal/vaulterrors"
)

const upstreamSchemaName = "upstream"

// AttachEnvelopeIndex opens the Apple Envelope Index SQLite file read-only
// and binds it as the "upstream" schema of the canonical database (spec.md
// §4.7 step 1). The attach slot is a singleton: a second attach before
// detach fails with KindAlreadyAttached.
func (d *DB) AttachEnvelopeIndex(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.attached {
		return vaulterrors.New(vaulterrors.KindAlreadyAttached, "an upstream is already attached (%q)", d.attachedPath)
	}
	if _, err := os.Stat(path); err != nil {
		return vaulterrors.Wrap(vaulterrors.KindEnvelopeIndexNotFound, err, "envelope index %q", path)
	}

	attachSQL := fmt.Sprintf("ATTACH DATABASE 'file:%s?mode=ro' AS %s", path, upstreamSchemaName)
	if _, err := d.conn.Exec(attachSQL); err != nil {
		return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "attaching envelope index %q", path)
	}

	d.attached = true
	d.attachedPath = path
	return nil
}

// DetachEnvelopeIndex releases the attached upstream. Fails with
// KindNotAttached if no upstream is currently attached.
func (d *DB) DetachEnvelopeIndex() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.attached {
		return vaulterrors.New(vaulterrors.KindNotAttached, "no upstream is attached")
	}

	if _, err := d.conn.Exec(fmt.Sprintf("DETACH DATABASE %s", upstreamSchemaName)); err != nil {
		return vaulterrors.Wrap(vaulterrors.KindQueryFailed, err, "detaching upstream")
	}

	d.attached = false
	d.attachedPath = ""
	return nil
}

// IsAttached reports whether an upstream Envelope Index is currently
// attached.
func (d *DB) IsAttached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attached
}
