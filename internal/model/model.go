package model

import "time"

// ActivityType identifies the lifecycle event an Activity records.
type ActivityType string

const (
	ActivityCreated ActivityType = "created"
	ActivityPayment ActivityType = "payment"
	ActivitySettled ActivityType = "settled"
)

// Friend is someone who has advanced money on the account holder's behalf.
// Friends are append-only: they are never mutated or deleted.
type Friend struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expense is money a friend spent for the account holder, owed back to them.
type Expense struct {
	ID         string     `json:"id"`
	Amount     float64    `json:"amount"`
	FriendID   string     `json:"friendId"`
	Purpose    string     `json:"purpose"`
	Tags       []string   `json:"tags"`
	CreatedAt  time.Time  `json:"createdAt"`
	IsPaid     bool       `json:"isPaid"`
	PaidAt     *time.Time `json:"paidAt,omitempty"`
	PaidAmount float64    `json:"paidAmount,omitempty"`
}

// Remaining returns the unpaid portion of the expense. A paid expense has
// exactly zero remaining regardless of rounding in PaidAmount.
func (e Expense) Remaining() float64 {
	if e.IsPaid {
		return 0
	}
	paid := e.PaidAmount
	if paid < 0 {
		paid = 0
	}
	if rem := e.Amount - paid; rem > 0 {
		return rem
	}
	return 0
}

// Activity is an immutable append-only log entry for an expense lifecycle
// event. A "created" entry records the original amount, "payment" a partial
// amount applied, and "settled" the remaining balance that closed the expense.
type Activity struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	ExpenseID string       `json:"expenseId"`
	FriendID  string       `json:"friendId"`
	Amount    float64      `json:"amount"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Meta carries snapshot-level metadata. UpdatedAt is refreshed on every
// successful mutation and is the sole arbiter used by reconciliation.
type Meta struct {
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot is the complete persisted state, treated as one unit everywhere:
// the in-memory cache, the local store record, and the remote row.
type Snapshot struct {
	Friends    []Friend   `json:"friends"`
	Expenses   []Expense  `json:"expenses"`
	Activities []Activity `json:"activities"`
	Meta       Meta       `json:"meta"`
}

// Clone returns a deep copy of the snapshot. Ledger operations mutate the
// copy and hand it back through the cache, so the live snapshot is never
// aliased outside the cache.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Friends:    make([]Friend, len(s.Friends)),
		Expenses:   make([]Expense, len(s.Expenses)),
		Activities: make([]Activity, len(s.Activities)),
		Meta:       s.Meta,
	}
	copy(out.Friends, s.Friends)
	copy(out.Activities, s.Activities)
	for i, e := range s.Expenses {
		if e.Tags != nil {
			tags := make([]string, len(e.Tags))
			copy(tags, e.Tags)
			e.Tags = tags
		}
		if e.PaidAt != nil {
			t := *e.PaidAt
			e.PaidAt = &t
		}
		out.Expenses[i] = e
	}
	return out
}
