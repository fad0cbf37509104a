// Package source provides the adapters that produce raw records from the
// configured upstream systems. An adapter either reads declared-schema CSV
// exports or polls a paginated JSON API; both satisfy the same contract so
// the pipeline does not care where records come from.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgersync/backend/internal/models"
)

// Kind selects the adapter implementation for a source.
type Kind string

const (
	KindCSV Kind = "csv"
	KindAPI Kind = "api"
)

var (
	ErrUnknownKind = errors.New("unknown source kind")
	ErrNoName      = errors.New("sources need a name")

	// ErrFetchFailed marks errors that are fatal for the whole source, for
	// example an authentication failure or a page fetch that exhausted its
	// retries. Record-level errors do not wrap it.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrFileMissing is returned when a declared CSV file does not exist.
	// This is a configuration error that fails the source before any
	// records are read.
	ErrFileMissing = errors.New("declared file does not exist")
)

// Config declares a single source. Credentials are opaque to the pipeline,
// token lifecycles are handled outside of this backend.
type Config struct {
	Name string `mapstructure:"name"`
	Kind Kind   `mapstructure:"kind"`

	// CSV sources: paths of the declared entity files. Only configured
	// entities are read; a configured path that does not exist fails the
	// source at open time.
	InvoicesPath     string `mapstructure:"invoices_path"`
	PaymentsPath     string `mapstructure:"payments_path"`
	TransactionsPath string `mapstructure:"transactions_path"`

	// API sources.
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	// Entities limits which entity endpoints are polled. Defaults to all.
	Entities   []string `mapstructure:"entities"`
	PageSize   int      `mapstructure:"page_size"`
	MaxRetries int      `mapstructure:"max_retries"`
}

// Raw is one source-native record, or a record-level error. Errors are
// yielded alongside successes so that one bad record does not abort the
// stream.
type Raw struct {
	Entity models.EntityKind
	// Fields holds the record values keyed by canonical field name.
	Fields map[string]string
	// Pos describes where the record came from, e.g. a file line or an API
	// page, for error messages.
	Pos string
	Err error
}

// Adapter is the uniform interface over all source implementations.
//
// Fetch returns a finite stream of raw records changed since the given
// time. The channel is closed when the source is exhausted or the context
// is cancelled.
type Adapter interface {
	Name() string
	// Open validates the source configuration. A failing Open fails the
	// whole source before any records are read.
	Open(ctx context.Context) error
	Fetch(ctx context.Context, since time.Time) (<-chan Raw, error)
	Close() error
}

// New builds the adapter for a source configuration.
func New(cfg Config) (Adapter, error) {
	if cfg.Name == "" {
		return nil, ErrNoName
	}

	switch cfg.Kind {
	case KindCSV:
		return newCSVAdapter(cfg), nil
	case KindAPI:
		return newAPIAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}
