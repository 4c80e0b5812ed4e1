package ingest

import (
	"context"
	"fmt"

	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
)

// Query is the discovery request passed to every adapter. Adapters ignore
// the parts they cannot serve natively (declared via Capabilities).
type Query struct {
	Terms    []string
	Location string
	Limit    int
}

// Capabilities declares which Query filters an adapter applies natively.
// Anything not supported here is compensated for downstream by scoring.
type Capabilities struct {
	TextQuery      bool
	LocationFilter bool
}

// RawRecord is the untrusted, provider-shaped record an adapter hands to
// normalization. String fields are best-effort; amounts and dates stay raw.
type RawRecord struct {
	ExternalID    string
	Title         string
	FunderName    string
	Description   string // may contain HTML
	RawAmount     string
	RawDeadline   string
	RawPublished  string
	LocationScope string
	SourceType    models.SourceType
	Payload       []byte // original provider item, retained for audit
}

// Adapter speaks one provider's protocol and maps results into RawRecords.
// Zero results is a valid, successful empty slice; failures are returned as
// *AdapterError so the orchestrator can record them and keep going.
type Adapter interface {
	Name() string
	Capabilities() Capabilities
	Fetch(ctx context.Context, q Query) ([]RawRecord, error)
}

// ErrorKind classifies adapter failures for run bookkeeping.
type ErrorKind string

const (
	ErrUnreachable ErrorKind = "unreachable"
	ErrAuth        ErrorKind = "auth"
	ErrMalformed   ErrorKind = "malformed"
	ErrTimeout     ErrorKind = "timeout"
)

// AdapterError carries the failing source so one bad provider never aborts
// the whole aggregation.
type AdapterError struct {
	Source string
	Kind   ErrorKind
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Reason is the short form recorded in DiscoveryRun.SourcesFailed.
func (e *AdapterError) Reason() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func adapterErr(source string, kind ErrorKind, err error) *AdapterError {
	return &AdapterError{Source: source, Kind: kind, Err: err}
}
