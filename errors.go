package cpuinfo

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by register sources, the [Collector] and the
// snapshot readers.
var (
	// ErrNotAvailable is returned (usually wrapped) when a register source
	// does not exist on this machine or cannot be opened by this process,
	// or when a leaf or MSR is not exposed by the active backend. It is an
	// expected condition: collection skips the affected source and
	// continues.
	ErrNotAvailable = errors.New("not available")

	// ErrNoFacts is returned by [Collector.Facts] when neither CPUID leaves
	// nor MSRs produced a single fact.
	ErrNoFacts = errors.New("no facts collected with current configuration")

	// ErrDifferencesFound is matched by [DiffError] so callers can tell a
	// successful comparison with differences apart from a failed one.
	ErrDifferencesFound = errors.New("differences found")

	// ErrUnknownFormat is returned when a snapshot or schema format cannot
	// be determined or is not supported.
	ErrUnknownFormat = errors.New("unknown format")
)

// SourceError records a failure to open or query a register source.
// Use [errors.As] to extract the source name from wrapped errors.
type SourceError struct {
	Source string // source name, e.g. "/dev/cpu/0/msr", "/dev/kvm"
	Err    error  // underlying error
}

// Error returns a human-readable description of the source failure.
func (e *SourceError) Error() string {
	return fmt.Sprintf("source %q: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// ParseError records a failure while parsing a schema file or a fact
// snapshot. Use [errors.As] to extract the source from wrapped errors.
type ParseError struct {
	Source string // data source, e.g. file name or "embedded schema"
	Err    error  // underlying parse error
}

// Error returns a human-readable description of the parse failure.
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// MSRError records a failure while reading one model-specific register.
// These errors appear in [DiagnosticInfo.Errors] and can be inspected with
// [errors.As].
type MSRError struct {
	Name    string // MSR name from the schema
	Address uint32 // MSR address
	Err     error  // underlying error
}

// Error returns a human-readable description of the MSR failure.
func (e *MSRError) Error() string {
	return fmt.Sprintf("msr %s (%#x): %v", e.Name, e.Address, e.Err)
}

// Unwrap returns the underlying error.
func (e *MSRError) Unwrap() error {
	return e.Err
}

// NotAvailable reports whether the failure is the expected absence of the
// register rather than an I/O error.
func (e *MSRError) NotAvailable() bool {
	return errors.Is(e.Err, ErrNotAvailable)
}

// DiffError is returned by diff commands when two fact collections are not
// equivalent. It matches [ErrDifferencesFound] with [errors.Is].
type DiffError struct {
	Added   int
	Removed int
	Changed int
}

// Error summarises the number of differing facts.
func (e *DiffError) Error() string {
	return fmt.Sprintf("%v: %d added, %d removed, %d changed",
		ErrDifferencesFound, e.Added, e.Removed, e.Changed)
}

// Is reports whether target is [ErrDifferencesFound].
func (e *DiffError) Is(target error) bool {
	return target == ErrDifferencesFound
}
