// Package vaulterrors defines the closed set of error kinds surfaced by the
// vault, binding, discovery, emlx, and database components. Every public
// operation that can fail returns one of these kinds (wrapped with context),
// never a bare error string, so callers can branch with errors.As.
package vaulterrors

import "fmt"

// Kind is the closed taxonomy of failures a caller may need to branch on.
type Kind string

const (
	// Vault
	KindAlreadyExists  Kind = "already_exists"
	KindNotAVault      Kind = "not_a_vault"
	KindNoVaultContext Kind = "no_vault_context"
	KindConfigInvalid  Kind = "config_invalid"

	// Binding
	KindAccountAlreadyBound Kind = "account_already_bound"
	KindRegistryCorrupt     Kind = "registry_corrupt"

	// Discovery
	KindMailDirectoryNotFound Kind = "mail_directory_not_found"
	KindNoVersionDirectory    Kind = "no_version_directory"
	KindEnvelopeIndexNotFound Kind = "envelope_index_not_found"
	KindPermissionDenied      Kind = "permission_denied"

	// Emlx
	KindFileNotFound    Kind = "file_not_found"
	KindInvalidFormat   Kind = "invalid_format"
	KindDecodingError   Kind = "decoding_error"

	// Database (mail/calendar)
	KindNotInitialized      Kind = "not_initialized"
	KindAlreadyAttached     Kind = "already_attached"
	KindNotAttached         Kind = "not_attached"
	KindQueryFailed         Kind = "query_failed"
	KindConstraintViolation Kind = "constraint_violation"
)

// Error is the single error type returned by every public operation in this
// module that can fail with a taxonomy kind. Detail carries human-readable,
// actionable context (a path, an account id, a section name); Err optionally
// wraps the underlying cause for %w unwrapping.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, vaulterrors.Error{Kind: K}) match by kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs a new taxonomy error with a formatted detail message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap constructs a new taxonomy error wrapping an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// NoVaultContext builds the error VaultContext.Require returns when no vault
// is found walking up from a path. Per spec.md §6 the message must include
// the searched path and the literal substring "swea init".
func NoVaultContext(searchedFrom string) *Error {
	return New(KindNoVaultContext,
		"no vault found searching up from %q; run `swea init <path>` to create one",
		searchedFrom)
}

// PermissionDenied builds the discovery permission error. Per spec.md §6 the
// description must mention the offending path and the literal substring
// "Full Disk Access".
func PermissionDenied(path string, cause error) *Error {
	return Wrap(KindPermissionDenied, cause,
		"permission denied reading %q; grant Full Disk Access to this application in System Settings > Privacy & Security",
		path)
}

// AccountAlreadyBound builds the binding-conflict error for §4.5/§8 S1.
func AccountAlreadyBound(accountID, existingVault string) *Error {
	return New(KindAccountAlreadyBound,
		"account %q is already bound to vault %q", accountID, existingVault)
}
