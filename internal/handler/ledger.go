package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/binshadcs/settle-up/internal/format"
	"github.com/binshadcs/settle-up/internal/ledger"
	"github.com/binshadcs/settle-up/internal/model"
	"github.com/binshadcs/settle-up/internal/websocket"
)

// LedgerHandler exposes the ledger's read/write contract over JSON. It is
// deliberately thin: validation here is the form-level validation the core
// expects its callers to perform.
type LedgerHandler struct {
	svc    *ledger.Service
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewLedgerHandler(svc *ledger.Service, hub *websocket.Hub, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, hub: hub, logger: logger}
}

func (h *LedgerHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

type friendRequest struct {
	Name string `json:"name"`
}

func (h *LedgerHandler) CreateFriend(w http.ResponseWriter, r *http.Request) {
	var req friendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	friend := h.svc.AddFriend(req.Name)
	h.broadcast(websocket.LedgerChanged("friend_added", friend.ID))
	writeJSON(w, http.StatusCreated, friend)
}

func (h *LedgerHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	friends := h.svc.Friends()
	if friends == nil {
		friends = []model.Friend{}
	}
	writeJSON(w, http.StatusOK, friends)
}

func (h *LedgerHandler) GetFriend(w http.ResponseWriter, r *http.Request) {
	friend := h.svc.FriendByID(r.PathValue("id"))
	if friend == nil {
		writeError(w, http.StatusNotFound, "friend not found")
		return
	}
	writeJSON(w, http.StatusOK, friend)
}

func (h *LedgerHandler) FriendBalance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	balance := h.svc.FriendBalance(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"friend_id": id,
		"balance":   balance,
		"display":   format.Currency(balance),
	})
}

func (h *LedgerHandler) FriendExpenses(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var expenses []model.Expense
	switch r.URL.Query().Get("state") {
	case "pending":
		expenses = h.svc.PendingExpensesForFriend(id)
	case "settled":
		expenses = h.svc.SettledExpensesForFriend(id)
	default:
		for _, e := range h.svc.Expenses() {
			if e.FriendID == id {
				expenses = append(expenses, e)
			}
		}
		if expenses == nil {
			expenses = []model.Expense{}
		}
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (h *LedgerHandler) FriendActivities(w http.ResponseWriter, r *http.Request) {
	activities := h.svc.ActivitiesForFriend(r.PathValue("id"), limitParam(r))
	writeJSON(w, http.StatusOK, activities)
}

// SettleFriend marks every unpaid expense of the friend as fully paid.
func (h *LedgerHandler) SettleFriend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.svc.MarkAllPaidForFriend(id)
	h.broadcast(websocket.LedgerChanged("friend_settled", id))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type paymentRequest struct {
	Amount float64 `json:"amount"`
}

// FriendPayment allocates a lump payment across the friend's outstanding
// expenses, oldest first.
func (h *LedgerHandler) FriendPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	id := r.PathValue("id")
	h.svc.ApplyPaymentForFriend(id, req.Amount)
	h.broadcast(websocket.LedgerChanged("friend_payment", id))
	writeJSON(w, http.StatusOK, map[string]any{
		"friend_id": id,
		"balance":   h.svc.FriendBalance(id),
	})
}

type expenseRequest struct {
	Amount   float64  `json:"amount"`
	FriendID string   `json:"friend_id"`
	Purpose  string   `json:"purpose"`
	Tags     []string `json:"tags"`
}

func (h *LedgerHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if h.svc.FriendByID(req.FriendID) == nil {
		writeError(w, http.StatusBadRequest, "unknown friend")
		return
	}

	expense := h.svc.AddExpense(req.Amount, req.FriendID, req.Purpose, req.Tags)
	h.broadcast(websocket.LedgerChanged("expense_added", expense.ID))
	writeJSON(w, http.StatusCreated, expense)
}

func (h *LedgerHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses := h.svc.Expenses()
	if expenses == nil {
		expenses = []model.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

// MarkExpensePaid settles a single expense in full. Unknown ids are 404s;
// an already-paid expense is a no-op and does not broadcast, so UIs only
// re-fetch for mutations that happened.
func (h *LedgerHandler) MarkExpensePaid(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.svc.ExpenseByID(id) == nil {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}
	if h.svc.MarkExpensePaid(id) {
		h.broadcast(websocket.LedgerChanged("expense_settled", id))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ExpensePayment applies a partial payment to a single expense. Unknown ids
// are 404s; a payment the ledger rejects (already settled) does not
// broadcast.
func (h *LedgerHandler) ExpensePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	id := r.PathValue("id")
	if h.svc.ExpenseByID(id) == nil {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}
	if h.svc.ApplyPayment(id, req.Amount) {
		h.broadcast(websocket.LedgerChanged("expense_payment", id))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *LedgerHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Activities(limitParam(r)))
}

// Summary serves the dashboard view: total outstanding plus the most-owed
// friends.
func (h *LedgerHandler) Summary(w http.ResponseWriter, r *http.Request) {
	total := h.svc.TotalPending()
	writeJSON(w, http.StatusOK, map[string]any{
		"total_pending": total,
		"display":       format.Currency(total),
		"top_owed":      h.svc.TopOwedFriends(limitParam(r)),
	})
}

// limitParam parses the optional ?limit= query parameter; 0 means no limit.
func limitParam(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
