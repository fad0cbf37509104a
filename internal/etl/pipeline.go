package etl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ledgersync/backend/internal/models"
	"github.com/ledgersync/backend/internal/normalize"
	"github.com/ledgersync/backend/internal/reconcile"
	"github.com/ledgersync/backend/internal/source"
	"github.com/ledgersync/backend/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/ryanuber/go-glob"
)

// runSource drives one source through the full pipeline:
// fetch -> normalize -> reconcile -> apply. Record-level problems are
// counted and queued for review without halting the batch; source-level
// problems fail the source without touching the store.
func (o *Orchestrator) runSource(ctx context.Context, run *models.SyncRun, cfg source.Config, since time.Time) models.SourceResult {
	result := models.SourceResult{
		Source: cfg.Name,
		Status: models.SourceSucceeded,
	}

	fail := func(reason string, err error) models.SourceResult {
		result.Status = models.SourceFailed
		result.Reason = fmt.Sprintf("%s: %s", reason, err)
		log.Error().Str("run", run.ID.String()).Str("source", cfg.Name).Err(err).Msg(reason)
		return result
	}

	adapter, err := source.New(cfg)
	if err != nil {
		return fail("source configuration is invalid", err)
	}

	if err := adapter.Open(ctx); err != nil {
		return fail("could not open source", err)
	}
	defer adapter.Close()

	rules, err := o.store.CategoryRules(ctx)
	if err != nil {
		return fail("could not load category rules", err)
	}

	records, err := adapter.Fetch(ctx, since)
	if err != nil {
		return fail("could not start fetching", err)
	}

	syncedAt := time.Now().In(time.UTC)
	seen := make(map[string]bool)
	var batch []store.Item

	for raw := range records {
		if raw.Err != nil {
			if errors.Is(raw.Err, source.ErrFetchFailed) {
				// Terminal for the whole source, nothing gets committed.
				return fail("fetch failed", raw.Err)
			}

			result.Failed++
			o.queueReview(ctx, run, cfg.Name, raw, models.ReviewFetch, raw.Err.Error())
			continue
		}

		result.Fetched++

		record, err := normalize.Record(cfg.Name, raw)
		if err != nil {
			result.Failed++
			o.queueReview(ctx, run, cfg.Name, raw, models.ReviewValidation, err.Error())
			continue
		}

		record = categorize(record, rules)

		// Re-exports sometimes contain the same record twice. The first
		// occurrence wins, later ones go to review.
		dedupeKey := fmt.Sprintf("%s/%s", record.Kind(), record.NaturalKey())
		if seen[dedupeKey] {
			result.Conflicted++
			o.queueReview(ctx, run, cfg.Name, raw, models.ReviewConflict, "duplicate natural key within one batch")
			continue
		}
		seen[dedupeKey] = true

		item, decision, err := o.reconcileRecord(ctx, record)
		if err != nil {
			return fail("could not look up existing record", err)
		}

		switch decision.Op {
		case reconcile.SkipUnchanged:
			result.Skipped++
		case reconcile.Conflict:
			result.Conflicted++
			o.queueReview(ctx, run, cfg.Name, raw, models.ReviewConflict, decision.Reason)
		default:
			setSyncedAt(item.Record, syncedAt)
			batch = append(batch, item)
		}
	}

	// A run timeout aborts an in-flight fetch, and the adapters always
	// deliver that as a terminal fetch error before closing the stream, so
	// it is handled above. Getting here means the source finished fetching,
	// and its batch may still commit.
	applied, err := o.store.Apply(context.WithoutCancel(ctx), batch)
	if err != nil {
		return fail("batch commit failed", err)
	}

	result.Inserted = applied.Inserted
	result.Updated = applied.Updated

	log.Info().
		Str("run", run.ID.String()).
		Str("source", cfg.Name).
		Int("fetched", result.Fetched).
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("conflicted", result.Conflicted).
		Int("failed", result.Failed).
		Msg("source synced")

	return result
}

// reconcileRecord looks up the stored record with the same natural key and
// decides what to do with the candidate. For updates, the candidate takes
// over the identity of the stored row so the write replaces it instead of
// inserting a sibling.
func (o *Orchestrator) reconcileRecord(ctx context.Context, record models.Record) (store.Item, reconcile.Decision, error) {
	switch candidate := record.(type) {
	case models.Invoice:
		existing, err := o.store.FindInvoice(ctx, candidate.Source, candidate.InvoiceNumber)
		if err != nil {
			return store.Item{}, reconcile.Decision{}, err
		}
		decision := reconcile.Invoice(candidate, existing)
		if decision.Op == reconcile.UpdateIfChanged {
			candidate.DefaultModel = existing.DefaultModel
		}
		return store.Item{Op: decision.Op, Record: &candidate}, decision, nil

	case models.Payment:
		existing, err := o.store.FindPayment(ctx, candidate.Source, candidate.PaymentNumber)
		if err != nil {
			return store.Item{}, reconcile.Decision{}, err
		}
		decision := reconcile.Payment(candidate, existing)
		if decision.Op == reconcile.UpdateIfChanged {
			candidate.DefaultModel = existing.DefaultModel
		}
		return store.Item{Op: decision.Op, Record: &candidate}, decision, nil

	case models.BankTransaction:
		existing, err := o.store.FindTransaction(ctx, candidate.Source, candidate.ExternalID)
		if err != nil {
			return store.Item{}, reconcile.Decision{}, err
		}
		decision := reconcile.Transaction(candidate, existing)
		if decision.Op == reconcile.UpdateIfChanged {
			candidate.DefaultModel = existing.DefaultModel
		}
		return store.Item{Op: decision.Op, Record: &candidate}, decision, nil

	default:
		return store.Item{}, reconcile.Decision{}, fmt.Errorf("unhandled record type %T", record)
	}
}

// categorize assigns a category to bank transactions the source left
// uncategorized, using the first matching rule.
func categorize(record models.Record, rules []models.CategoryRule) models.Record {
	transaction, ok := record.(models.BankTransaction)
	if !ok || transaction.Category != "" {
		return record
	}

	for _, rule := range rules {
		if glob.Glob(rule.Match, transaction.Description) {
			transaction.Category = rule.Category
			return transaction
		}
	}

	return record
}

// setSyncedAt stamps the record with the time of this sync.
func setSyncedAt(record models.Record, syncedAt time.Time) {
	switch r := record.(type) {
	case *models.Invoice:
		r.SyncedAt = syncedAt
	case *models.Payment:
		r.SyncedAt = syncedAt
	case *models.BankTransaction:
		r.SyncedAt = syncedAt
	}
}

// queueReview stores the raw record in the review queue. Review writes use
// their own context so a run timeout cannot drop them.
func (o *Orchestrator) queueReview(ctx context.Context, run *models.SyncRun, sourceName string, raw source.Raw, reason models.ReviewReason, detail string) {
	payload, err := json.Marshal(raw.Fields)
	if err != nil {
		payload = nil
	}

	item := &models.ReviewItem{
		SyncRunID:  run.ID,
		Source:     sourceName,
		Entity:     raw.Entity,
		NaturalKey: naturalKeyOf(raw),
		Reason:     reason,
		Detail:     fmt.Sprintf("%s (%s)", detail, raw.Pos),
		Payload:    string(payload),
	}

	if err := o.store.QueueReview(context.WithoutCancel(ctx), item); err != nil {
		log.Error().Str("source", sourceName).Err(err).Msg("could not queue review item")
	}
}

// naturalKeyOf extracts the natural key from the raw fields when present.
func naturalKeyOf(raw source.Raw) string {
	for _, field := range []string{"invoice_number", "payment_number", "external_transaction_id"} {
		if value, ok := raw.Fields[field]; ok && value != "" {
			return value
		}
	}
	return ""
}
