package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"resit/internal/amqp"
	"resit/internal/claims"
	"resit/internal/core"
	"resit/internal/log"
	"resit/internal/receipts"
)

// Listing bounds.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	MaxBatchSize     = 100
)

var (
	ErrBatchTooLarge = fmt.Errorf("batch exceeds %d receipts", MaxBatchSize)
	ErrUnknownTeam   = errors.New("unknown team")
)

// Publisher announces receipt changes to other processes.
type Publisher interface {
	PublishReceiptChanged(ctx context.Context, msg *amqp.ReceiptChanged) error
}

// TeamLookup resolves team ids referenced by receipts.
type TeamLookup interface {
	GetTeam(ctx context.Context, id string) (core.Team, error)
}

// Invalidator drops cached views that cover the given days.
type Invalidator interface {
	Invalidate(ctx context.Context, days ...core.Date) []string
}

// ReceiptPatch carries the fields of a partial update. Nil fields are kept.
type ReceiptPatch struct {
	Merchant      *string
	Date          *core.Date
	Total         *decimal.Decimal
	Currency      *string
	PaymentMethod *string
	Category      *string
	FullText      *string
	TeamID        *string
}

// BatchError reports why one item of a batch was rejected.
type BatchError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResult is the outcome of CreateBatch. Items fail independently.
type BatchResult struct {
	Created []core.Receipt `json:"created"`
	Errors  []BatchError   `json:"errors"`
}

// ReceiptService orchestrates receipt writes across the store, the local
// query cache and AMQP.
type ReceiptService struct {
	store       receipts.Store
	invalidator Invalidator
	publisher   Publisher
	teams       TeamLookup
	logger      *log.Logger
	newID       func() string
	observe     func(op string, err error)
}

// NewReceiptService wires a store with optional invalidator and publisher.
// Either may be nil.
func NewReceiptService(store receipts.Store, invalidator Invalidator, publisher Publisher, logger *log.Logger) *ReceiptService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReceiptService{
		store:       store,
		invalidator: invalidator,
		publisher:   publisher,
		logger:      logger.WithComponent(log.ComponentReceipt),
		newID:       uuid.NewString,
		observe:     func(string, error) {},
	}
}

// ObserveWrites registers fn to be called with the result of every store
// write.
func (s *ReceiptService) ObserveWrites(fn func(op string, err error)) {
	if fn != nil {
		s.observe = fn
	}
}

// CheckTeams makes writes reject receipts whose team id is unknown to
// teams.
func (s *ReceiptService) CheckTeams(teams TeamLookup) {
	s.teams = teams
}

// Create assigns an id, applies defaults and saves the receipt.
func (s *ReceiptService) Create(ctx context.Context, r core.Receipt) (core.Receipt, error) {
	r.ID = s.newID()
	normalize(&r)
	if err := s.checkTeam(ctx, r.TeamID); err != nil {
		return core.Receipt{}, fmt.Errorf("create receipt: %w", err)
	}

	created, err := s.store.Create(ctx, r)
	s.observe(log.OpCreate, err)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("create receipt: %w", err)
	}

	s.logger.InfoContext(ctx, "Receipt created",
		log.NewFields().
			WithOperation(log.OpCreate).
			WithReceipt(created.ID, created.Merchant, created.Total.StringFixed(2), created.Date.Key()).
			ToSlice()...)
	s.afterWrite(ctx, amqp.OpCreated, created.ID, created.Date, core.Date{})
	return created, nil
}

// CreateBatch creates each receipt independently and reports per-item
// failures.
func (s *ReceiptService) CreateBatch(ctx context.Context, rs []core.Receipt) (BatchResult, error) {
	if len(rs) > MaxBatchSize {
		return BatchResult{}, ErrBatchTooLarge
	}
	res := BatchResult{Created: []core.Receipt{}, Errors: []BatchError{}}
	for i, r := range rs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		created, err := s.Create(ctx, r)
		if err != nil {
			res.Errors = append(res.Errors, BatchError{Index: i, Error: err.Error()})
			continue
		}
		res.Created = append(res.Created, created)
	}
	return res, nil
}

func (s *ReceiptService) Get(ctx context.Context, id string) (core.Receipt, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("get receipt %s: %w", id, err)
	}
	return r, nil
}

// List applies listing defaults and bounds before querying the store.
func (s *ReceiptService) List(ctx context.Context, f receipts.ListFilter) (receipts.Page, error) {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.SortBy == "" {
		f.SortBy = receipts.SortByDate
	}
	if f.SortOrder == "" {
		f.SortOrder = "desc"
	}
	page, err := s.store.List(ctx, f)
	if err != nil {
		return receipts.Page{}, fmt.Errorf("list receipts: %w", err)
	}
	return page, nil
}

// Update applies patch to the stored receipt.
func (s *ReceiptService) Update(ctx context.Context, id string, patch ReceiptPatch) (core.Receipt, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("update receipt %s: %w", id, err)
	}

	next := existing
	if patch.Merchant != nil {
		next.Merchant = *patch.Merchant
	}
	if patch.Date != nil {
		next.Date = *patch.Date
	}
	if patch.Total != nil {
		next.Total = *patch.Total
	}
	if patch.Currency != nil {
		next.Currency = *patch.Currency
	}
	if patch.PaymentMethod != nil {
		next.PaymentMethod = *patch.PaymentMethod
	}
	if patch.Category != nil {
		next.Category = *patch.Category
	}
	if patch.FullText != nil {
		next.FullText = *patch.FullText
	}
	if patch.TeamID != nil {
		next.TeamID = *patch.TeamID
	}
	normalize(&next)
	if next.TeamID != existing.TeamID {
		if err := s.checkTeam(ctx, next.TeamID); err != nil {
			return core.Receipt{}, fmt.Errorf("update receipt %s: %w", id, err)
		}
	}

	updated, err := s.store.Update(ctx, next)
	s.observe(log.OpUpdate, err)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("update receipt %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Receipt updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldReceiptID, updated.ID)
	s.afterWrite(ctx, amqp.OpUpdated, updated.ID, updated.Date, existing.Date)
	return updated, nil
}

func (s *ReceiptService) Delete(ctx context.Context, id string) (core.Receipt, error) {
	deleted, err := s.store.Delete(ctx, id)
	s.observe(log.OpDelete, err)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("delete receipt %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Receipt deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldReceiptID, deleted.ID)
	s.afterWrite(ctx, amqp.OpDeleted, deleted.ID, deleted.Date, core.Date{})
	return deleted, nil
}

// afterWrite invalidates local cached ranges and publishes the change. Both
// are best effort: the write has already succeeded.
func (s *ReceiptService) afterWrite(ctx context.Context, op, id string, day, previous core.Date) {
	days := []core.Date{day}
	prevKey := ""
	if !previous.IsEmpty() && !previous.Equal(day.Time) {
		days = append(days, previous)
		prevKey = previous.Key()
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, days...)
	}

	if s.publisher == nil {
		return
	}
	msg := amqp.NewReceiptChanged(id, op, day.Key(), prevKey)
	if err := s.publisher.PublishReceiptChanged(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish receipt change",
			log.FieldReceiptID, id,
			log.FieldOperation, op,
			log.Err(err))
	}
}

func (s *ReceiptService) checkTeam(ctx context.Context, id string) error {
	if id == "" || s.teams == nil {
		return nil
	}
	_, err := s.teams.GetTeam(ctx, id)
	if errors.Is(err, claims.ErrTeamNotFound) {
		return fmt.Errorf("%w %q", ErrUnknownTeam, id)
	}
	return err
}

func normalize(r *core.Receipt) {
	r.Merchant = strings.TrimSpace(r.Merchant)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = core.DefaultCurrency
	}
	r.PaymentMethod = strings.TrimSpace(r.PaymentMethod)
	r.Category = strings.TrimSpace(r.Category)
	r.TeamID = strings.TrimSpace(r.TeamID)
}
