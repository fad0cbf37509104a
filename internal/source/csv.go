package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ledgersync/backend/internal/models"
	"github.com/rs/zerolog/log"
)

// column declares one CSV column of an entity export and the canonical
// field it maps to.
type column struct {
	header   string
	field    string
	required bool
}

// The declared schemas follow the QuickBooks and bank export formats. Extra
// columns in a file are ignored, missing required columns fail the source
// at open time.
var csvSchemas = map[models.EntityKind][]column{
	models.KindInvoice: {
		{header: "Invoice Number", field: "invoice_number", required: true},
		{header: "Customer ID", field: "customer_id"},
		{header: "Customer Name", field: "customer_name", required: true},
		{header: "Invoice Date", field: "invoice_date", required: true},
		{header: "Due Date", field: "due_date", required: true},
		{header: "Total Amount", field: "total_amount", required: true},
		{header: "Balance", field: "balance", required: true},
		{header: "Status", field: "status", required: true},
	},
	models.KindPayment: {
		{header: "Payment Number", field: "payment_number", required: true},
		{header: "Customer ID", field: "customer_id"},
		{header: "Customer Name", field: "customer_name", required: true},
		{header: "Payment Date", field: "payment_date", required: true},
		{header: "Amount", field: "amount", required: true},
		{header: "Payment Method", field: "payment_method"},
	},
	models.KindTransaction: {
		{header: "Transaction ID", field: "external_transaction_id", required: true},
		{header: "Account ID", field: "account_id", required: true},
		{header: "Date", field: "posted_date", required: true},
		{header: "Amount", field: "amount", required: true},
		{header: "Description", field: "description", required: true},
		{header: "Category", field: "category"},
	},
}

// dateField is the per-entity field used for the since filter.
var csvDateFields = map[models.EntityKind]string{
	models.KindInvoice:     "invoice_date",
	models.KindPayment:     "payment_date",
	models.KindTransaction: "posted_date",
}

// csvAdapter reads declared-schema CSV exports from disk.
type csvAdapter struct {
	cfg   Config
	files map[models.EntityKind]string
}

func newCSVAdapter(cfg Config) *csvAdapter {
	files := make(map[models.EntityKind]string)
	if cfg.InvoicesPath != "" {
		files[models.KindInvoice] = cfg.InvoicesPath
	}
	if cfg.PaymentsPath != "" {
		files[models.KindPayment] = cfg.PaymentsPath
	}
	if cfg.TransactionsPath != "" {
		files[models.KindTransaction] = cfg.TransactionsPath
	}

	return &csvAdapter{cfg: cfg, files: files}
}

func (a *csvAdapter) Name() string {
	return a.cfg.Name
}

// Open checks that every declared file exists and carries the declared
// columns.
func (a *csvAdapter) Open(_ context.Context) error {
	if len(a.files) == 0 {
		return fmt.Errorf("source %q declares no files", a.cfg.Name)
	}

	for entity, path := range a.files {
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrFileMissing, path)
			}
			return fmt.Errorf("opening %s: %w", path, err)
		}

		_, err = headerIndex(csv.NewReader(f), entity)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	return nil
}

func (a *csvAdapter) Fetch(ctx context.Context, since time.Time) (<-chan Raw, error) {
	out := make(chan Raw)

	go func() {
		defer close(out)

		// Iterate in a stable order so runs are reproducible.
		for _, entity := range []models.EntityKind{models.KindInvoice, models.KindPayment, models.KindTransaction} {
			path, ok := a.files[entity]
			if !ok {
				continue
			}

			if err := a.streamFile(ctx, entity, path, since, out); err != nil {
				// The terminal error must reach the consumer even when the
				// context is already done, otherwise an interrupted fetch
				// looks like a finished one. The consumer drains the channel
				// until it closes, so this send cannot block forever.
				out <- Raw{Entity: entity, Pos: path, Err: fmt.Errorf("%w: %s", ErrFetchFailed, err)}
				return
			}
		}
	}()

	return out, nil
}

func (a *csvAdapter) Close() error {
	return nil
}

// streamFile yields one Raw per data row. Row-level problems are yielded as
// record errors, only I/O level failures abort the file.
func (a *csvAdapter) streamFile(ctx context.Context, entity models.EntityKind, path string, since time.Time, out chan<- Raw) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	// Rows with a wrong field count are reported per record, not fatally.
	reader.FieldsPerRecord = -1

	index, err := headerIndex(reader, entity)
	if err != nil {
		return err
	}

	schema := csvSchemas[entity]
	dateField := csvDateFields[entity]

	for {
		// A cancelled fetch is a terminal error, the remaining rows were
		// never read.
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			line := 0
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			if !emit(ctx, out, Raw{
				Entity: entity,
				Pos:    fmt.Sprintf("%s:%d", path, line),
				Err:    fmt.Errorf("could not read line %d: %w", line, err),
			}) {
				return ctx.Err()
			}
			continue
		}

		line, _ := reader.FieldPos(0)

		fields := make(map[string]string, len(schema))
		for _, col := range schema {
			idx, ok := index[col.header]
			if !ok || idx >= len(record) {
				continue
			}
			fields[col.field] = record[idx]
		}

		// Skip records that are clearly older than the watermark. Rows with
		// unparseable dates flow on so the normalizer reports them properly.
		if !since.IsZero() {
			if date, err := ParseDate(fields[dateField]); err == nil && date.Before(since) {
				log.Debug().Str("source", a.cfg.Name).Str("file", path).Int("line", line).Msg("row older than watermark, skipping")
				continue
			}
		}

		if !emit(ctx, out, Raw{
			Entity: entity,
			Fields: fields,
			Pos:    fmt.Sprintf("%s:%d", path, line),
		}) {
			return ctx.Err()
		}
	}
}

// headerIndex reads the header row and maps declared headers to their
// position, verifying that all required columns are present.
func headerIndex(reader *csv.Reader, entity models.EntityKind) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("could not read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	for _, col := range csvSchemas[entity] {
		if _, ok := index[col.header]; !ok && col.required {
			return nil, fmt.Errorf("missing declared column %q for %s records", col.header, entity)
		}
	}

	return index, nil
}

// emit sends a Raw unless the context is done. It reports whether the send
// happened.
func emit(ctx context.Context, out chan<- Raw, raw Raw) bool {
	select {
	case out <- raw:
		return true
	case <-ctx.Done():
		return false
	}
}
