package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resit/internal/amqp"
	"resit/internal/core"
	"resit/internal/log"
	"resit/internal/receipts"
	"resit/internal/receipts/memory"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ReceiptChanged
	err  error
}

func (p *fakePublisher) PublishReceiptChanged(_ context.Context, msg *amqp.ReceiptChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

type fakeInvalidator struct {
	days []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, days ...core.Date) []string {
	for _, d := range days {
		f.days = append(f.days, d.Key())
	}
	return nil
}

func newReceiptService(t *testing.T, pub Publisher) (*ReceiptService, *fakeInvalidator) {
	t.Helper()
	inv := &fakeInvalidator{}
	svc := NewReceiptService(memory.New(), inv, pub, log.Discard())
	n := 0
	svc.newID = func() string {
		n++
		return "r" + string(rune('0'+n))
	}
	return svc, inv
}

func newReceipt(merchant string, day int, total string) core.Receipt {
	return core.Receipt{
		Merchant: merchant,
		Date:     core.NewDate(2025, 1, day),
		Total:    decimal.RequireFromString(total),
	}
}

func TestReceiptService_Create(t *testing.T) {
	pub := &fakePublisher{}
	svc, inv := newReceiptService(t, pub)
	ctx := context.Background()

	r := newReceipt("  Starbucks ", 15, "15.50")
	r.Currency = "usd"
	created, err := svc.Create(ctx, r)
	require.NoError(t, err)

	assert.Equal(t, "r1", created.ID)
	assert.Equal(t, "Starbucks", created.Merchant)
	assert.Equal(t, "USD", created.Currency)
	assert.Equal(t, []string{"2025-01-15"}, inv.days)
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, amqp.OpCreated, pub.msgs[0].Op)
	assert.Equal(t, "2025-01-15", pub.msgs[0].Day)

	_, err = svc.Create(ctx, newReceipt("", 15, "1"))
	assert.ErrorIs(t, err, core.ErrEmptyMerchant)
	assert.Len(t, pub.msgs, 1, "failed writes publish nothing")
}

func TestReceiptService_DefaultCurrency(t *testing.T) {
	svc, _ := newReceiptService(t, nil)
	created, err := svc.Create(context.Background(), newReceipt("Shell", 14, "45"))
	require.NoError(t, err)
	assert.Equal(t, core.DefaultCurrency, created.Currency)
}

func TestReceiptService_PublishFailureDoesNotFailWrite(t *testing.T) {
	svc, inv := newReceiptService(t, &fakePublisher{err: errors.New("broker down")})

	created, err := svc.Create(context.Background(), newReceipt("Uber", 15, "25.50"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []string{"2025-01-15"}, inv.days)
}

func TestReceiptService_UpdateMovesDay(t *testing.T) {
	pub := &fakePublisher{}
	svc, inv := newReceiptService(t, pub)
	ctx := context.Background()

	created, err := svc.Create(ctx, newReceipt("Walmart", 15, "67.89"))
	require.NoError(t, err)
	inv.days = nil

	newDay := core.NewDate(2025, 1, 10)
	category := "Groceries"
	updated, err := svc.Update(ctx, created.ID, ReceiptPatch{Date: &newDay, Category: &category})
	require.NoError(t, err)

	assert.Equal(t, "2025-01-10", updated.Date.Key())
	assert.Equal(t, "Groceries", updated.Category)
	assert.Equal(t, "Walmart", updated.Merchant, "unpatched fields are kept")
	assert.Equal(t, []string{"2025-01-10", "2025-01-15"}, inv.days)

	last := pub.msgs[len(pub.msgs)-1]
	assert.Equal(t, amqp.OpUpdated, last.Op)
	assert.Equal(t, []string{"2025-01-10", "2025-01-15"}, last.Days())

	bad := decimal.NewFromInt(-1)
	_, err = svc.Update(ctx, created.ID, ReceiptPatch{Total: &bad})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = svc.Update(ctx, "missing", ReceiptPatch{})
	assert.ErrorIs(t, err, receipts.ErrNotFound)
}

func TestReceiptService_Delete(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newReceiptService(t, pub)
	ctx := context.Background()

	created, err := svc.Create(ctx, newReceipt("Amazon", 15, "129.99"))
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)
	assert.Equal(t, amqp.OpDeleted, pub.msgs[len(pub.msgs)-1].Op)

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, receipts.ErrNotFound)
	_, err = svc.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, receipts.ErrNotFound)
}

func TestReceiptService_CreateBatch(t *testing.T) {
	svc, _ := newReceiptService(t, nil)
	ctx := context.Background()

	res, err := svc.CreateBatch(ctx, []core.Receipt{
		newReceipt("Starbucks", 15, "15.50"),
		newReceipt("", 15, "1"),
		newReceipt("Shell", 14, "45"),
	})
	require.NoError(t, err)
	assert.Len(t, res.Created, 2)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Contains(t, res.Errors[0].Error, "empty merchant")

	_, err = svc.CreateBatch(ctx, make([]core.Receipt, MaxBatchSize+1))
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestReceiptService_ListDefaults(t *testing.T) {
	svc, _ := newReceiptService(t, nil)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		_, err := svc.Create(ctx, newReceipt("Shop", i, "1"))
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, receipts.ListFilter{Limit: 0})
	require.NoError(t, err)
	assert.Equal(t, DefaultListLimit, page.Limit)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, "2025-01-03", page.Receipts[0].Date.Key(), "newest first by default")

	page, err = svc.List(ctx, receipts.ListFilter{Limit: 1000, Offset: -5})
	require.NoError(t, err)
	assert.Equal(t, MaxListLimit, page.Limit)
	assert.Equal(t, 0, page.Offset)
}

func TestReceiptService_ObserveWrites(t *testing.T) {
	svc, _ := newReceiptService(t, nil)
	ctx := context.Background()

	var ops []string
	var failed int
	svc.ObserveWrites(func(op string, err error) {
		ops = append(ops, op)
		if err != nil {
			failed++
		}
	})

	created, err := svc.Create(ctx, newReceipt("Cafe", 2, "3.00"))
	require.NoError(t, err)
	_, err = svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	_, err = svc.Delete(ctx, created.ID)
	require.Error(t, err)

	assert.Equal(t, []string{log.OpCreate, log.OpDelete, log.OpDelete}, ops)
	assert.Equal(t, 1, failed)
}
