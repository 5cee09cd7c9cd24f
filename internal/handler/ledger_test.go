package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/binshadcs/settle-up/internal/cache"
	"github.com/binshadcs/settle-up/internal/ident"
	"github.com/binshadcs/settle-up/internal/ledger"
	"github.com/binshadcs/settle-up/internal/model"
)

type memoryLocal struct {
	mu     sync.Mutex
	stored *model.Snapshot
}

func (m *memoryLocal) Read(ctx context.Context) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stored, nil
}

func (m *memoryLocal) Write(ctx context.Context, snap model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = &snap
	return nil
}

func (m *memoryLocal) MigrateLegacy(ctx context.Context) (*model.Snapshot, error) {
	return nil, nil
}

func setupLedgerHandler(t *testing.T) (*LedgerHandler, *ledger.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := cache.New(&memoryLocal{}, nil, ident.SystemClock{}, logger)
	t.Cleanup(c.Close)
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("init cache: %v", err)
	}
	svc := ledger.NewService(c, ident.SystemClock{})
	return NewLedgerHandler(svc, nil, logger), svc
}

func TestMarkExpensePaidUnknownID(t *testing.T) {
	h, _ := setupLedgerHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/expenses/nope/paid", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()

	h.MarkExpensePaid(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d for an unknown expense", rec.Code, http.StatusNotFound)
	}
}

func TestExpensePaymentUnknownID(t *testing.T) {
	h, _ := setupLedgerHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/expenses/nope/payments",
		strings.NewReader(`{"amount": 50}`))
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()

	h.ExpensePayment(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d for an unknown expense", rec.Code, http.StatusNotFound)
	}
}

func TestMarkExpensePaidSettles(t *testing.T) {
	h, svc := setupLedgerHandler(t)
	friend := svc.AddFriend("Asha")
	expense := svc.AddExpense(300, friend.ID, "lunch", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/expenses/"+expense.ID+"/paid", nil)
	req.SetPathValue("id", expense.ID)
	rec := httptest.NewRecorder()

	h.MarkExpensePaid(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := svc.ExpenseByID(expense.ID); got == nil || !got.IsPaid {
		t.Errorf("expense = %+v, want settled", got)
	}

	// Settling again is a no-op but still a 200: the resource exists.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/expenses/"+expense.ID+"/paid", nil)
	req.SetPathValue("id", expense.ID)
	h.MarkExpensePaid(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("repeat status = %d, want %d", rec.Code, http.StatusOK)
	}
}
