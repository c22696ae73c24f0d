package docpipe

import (
	"errors"
	"fmt"
	"strings"
)

// Extraction failure taxonomy. Callers distinguish these with errors.Is:
// a malformed container is not retried, an empty document is a legitimate
// non-fatal condition, and a conversion failure carries remediation detail.
var (
	// ErrMalformedContainer means the archive or a required XML part is
	// structurally invalid.
	ErrMalformedContainer = errors.New("malformed container")

	// ErrEmptyDocument means the file parsed fine but holds zero sheets or
	// paragraphs. Distinct from a parse failure.
	ErrEmptyDocument = errors.New("empty document")

	// ErrNoRecoverableText means every binary-scan strategy came up short.
	ErrNoRecoverableText = errors.New("no recoverable text")

	// ErrConversionUnavailable means no external conversion tool succeeded.
	ErrConversionUnavailable = errors.New("conversion unavailable")

	// ErrConversionTimeout marks a single conversion attempt that exceeded
	// its wall-clock bound. The chain continues past it.
	ErrConversionTimeout = errors.New("conversion timeout")
)

// ConversionAttempt records one tool invocation in the fallback chain.
type ConversionAttempt struct {
	Tool   string `json:"tool"`
	Reason string `json:"reason"`
}

// ConversionError reports an exhausted conversion chain. Attempts lists
// only tools that actually ran (not the ones skipped as unavailable), each
// with its individual failure reason, so the caller can tell "install tool
// X" apart from "this file defeated every installed tool".
type ConversionError struct {
	Attempts []ConversionAttempt
}

func (e *ConversionError) Error() string {
	if len(e.Attempts) == 0 {
		return "conversion unavailable: no conversion tool installed"
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %s", a.Tool, a.Reason)
	}
	return "conversion unavailable: " + strings.Join(parts, "; ")
}

func (e *ConversionError) Unwrap() error { return ErrConversionUnavailable }
