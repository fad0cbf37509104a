// Package store owns all persisted rows. It looks up records by natural
// key and applies reconciled batches transactionally: one atomic commit per
// source per run, so a partially loaded source can never leak into
// downstream reports.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ledgersync/backend/internal/models"
	"github.com/ledgersync/backend/internal/reconcile"
	"gorm.io/gorm"
)

// ErrUnsupportedOp is returned when a batch contains a decision that is not
// writable. Skip and Conflict decisions are handled by the caller and must
// not end up in a write batch.
var ErrUnsupportedOp = errors.New("unsupported operation in write batch")

// Store wraps the database for the pipeline.
type Store struct {
	db *gorm.DB

	// Commits are serialized per entity namespace. Two sources are not
	// expected to share a key space, but the writer must not assume it.
	locks map[models.EntityKind]*sync.Mutex
}

func New(db *gorm.DB) *Store {
	return &Store{
		db: db,
		locks: map[models.EntityKind]*sync.Mutex{
			models.KindInvoice:     {},
			models.KindPayment:     {},
			models.KindTransaction: {},
		},
	}
}

// FindInvoice returns the stored invoice with the given natural key, or nil
// when none exists.
func (s *Store) FindInvoice(ctx context.Context, source, number string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.WithContext(ctx).
		Where(&models.Invoice{Source: source, InvoiceNumber: number}).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindPayment returns the stored payment with the given natural key, or nil
// when none exists.
func (s *Store) FindPayment(ctx context.Context, source, number string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Where(&models.Payment{Source: source, PaymentNumber: number}).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindTransaction returns the stored bank transaction with the given
// natural key, or nil when none exists.
func (s *Store) FindTransaction(ctx context.Context, source, externalID string) (*models.BankTransaction, error) {
	var transaction models.BankTransaction
	err := s.db.WithContext(ctx).
		Where(&models.BankTransaction{Source: source, ExternalID: externalID}).
		First(&transaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

// Item is one writable decision of a batch. Record must be a pointer to a
// canonical entity.
type Item struct {
	Op     reconcile.Op
	Record models.Record
}

// BatchResult reports what an applied batch changed.
type BatchResult struct {
	Inserted int
	Updated  int
}

// Apply writes all items of one source batch in a single transaction.
// Either the whole batch commits or none of it does.
func (s *Store) Apply(ctx context.Context, items []Item) (BatchResult, error) {
	var result BatchResult

	if len(items) == 0 {
		return result, nil
	}

	unlock := s.lockNamespaces(items)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			switch item.Op {
			case reconcile.Insert:
				if err := tx.Create(item.Record).Error; err != nil {
					return fmt.Errorf("inserting %s %q: %w", item.Record.Kind(), item.Record.NaturalKey(), err)
				}
				result.Inserted++
			case reconcile.UpdateIfChanged:
				if err := tx.Save(item.Record).Error; err != nil {
					return fmt.Errorf("updating %s %q: %w", item.Record.Kind(), item.Record.NaturalKey(), err)
				}
				result.Updated++
			default:
				return fmt.Errorf("%w: %s", ErrUnsupportedOp, item.Op)
			}
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}

	return result, nil
}

// QueueReview stores a review item in its own transaction, so that a batch
// rollback cannot drop it.
func (s *Store) QueueReview(ctx context.Context, item *models.ReviewItem) error {
	return s.db.WithContext(ctx).Create(item).Error
}

// CategoryRules returns all category rules in priority order.
func (s *Store) CategoryRules(ctx context.Context) ([]models.CategoryRule, error) {
	var rules []models.CategoryRule
	err := s.db.WithContext(ctx).Order("priority ASC").Find(&rules).Error
	return rules, err
}

// CreateRun persists a new sync run.
func (s *Store) CreateRun(ctx context.Context, run *models.SyncRun) error {
	return s.db.WithContext(ctx).Create(run).Error
}

// UpdateRun persists changed fields of a sync run.
func (s *Store) UpdateRun(ctx context.Context, run *models.SyncRun) error {
	return s.db.WithContext(ctx).Omit("Results").Save(run).Error
}

// FinalizeRun persists the terminal run state together with its per-source
// results.
func (s *Store) FinalizeRun(ctx context.Context, run *models.SyncRun, results []models.SourceResult) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Results").Save(run).Error; err != nil {
			return err
		}

		for i := range results {
			results[i].SyncRunID = run.ID
			if err := tx.Create(&results[i]).Error; err != nil {
				return err
			}
		}

		run.Results = results
		return nil
	})
}

// lockNamespaces locks the entity namespaces touched by the batch in a
// stable order and returns the matching unlock function.
func (s *Store) lockNamespaces(items []Item) func() {
	kinds := make(map[models.EntityKind]bool)
	for _, item := range items {
		kinds[item.Record.Kind()] = true
	}

	ordered := make([]string, 0, len(kinds))
	for kind := range kinds {
		ordered = append(ordered, string(kind))
	}
	sort.Strings(ordered)

	for _, kind := range ordered {
		s.locks[models.EntityKind(kind)].Lock()
	}

	return func() {
		for _, kind := range ordered {
			s.locks[models.EntityKind(kind)].Unlock()
		}
	}
}
