// Package core holds the error taxonomy shared by the crawler, the index
// pipeline and the query engine.
package core

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a crawl is triggered while another one is running.
	ErrBusy = errors.New("crawl already running")

	// ErrRebuilding is returned to queries while the index is being rebuilt.
	ErrRebuilding = errors.New("index is being rebuilt")

	// ErrNoIndex is returned to queries before any crawl has finished.
	ErrNoIndex = errors.New("no index available")

	// ErrStaleVector indicates a stored vector whose length no longer matches
	// the term dictionary. Vectors must be rebuilt.
	ErrStaleVector = errors.New("stale page vector")

	// ErrDataIntegrity indicates rows referencing ids that do not exist.
	ErrDataIntegrity = errors.New("data integrity violation")
)

// ValidationError is a user input error. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError with a formatted message.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// FetchError describes a failed page fetch: transport error, TLS failure or
// a non-2xx status.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TLS reports whether the fetch failed on certificate verification.
func (e *FetchError) TLS() bool {
	if e.Err == nil {
		return false
	}
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostname         x509.HostnameError
		invalid          x509.CertificateInvalidError
		verification     *tls.CertificateVerificationError
	)
	switch {
	case errors.As(e.Err, &unknownAuthority),
		errors.As(e.Err, &hostname),
		errors.As(e.Err, &invalid),
		errors.As(e.Err, &verification):
		return true
	}
	return false
}
