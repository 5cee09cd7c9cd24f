// Package ledger implements the expense-splitting operations on top of the
// cache: friends, expenses, the activity log, balances, partial payments,
// and settlement. Every mutation runs as one atomic read-modify-write
// through cache.Update, so concurrent callers never lose each other's
// changes; amounts that change monetary state always append the matching
// activity records before saving.
package ledger

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/binshadcs/settle-up/internal/cache"
	"github.com/binshadcs/settle-up/internal/ident"
	"github.com/binshadcs/settle-up/internal/model"
)

// friendEmojis is the fixed palette new friends draw their avatar from.
var friendEmojis = []string{"😊", "🌟", "💫", "🎯", "🌸", "🍀", "🦋", "🐱", "☀️", "🎨", "🎵"}

type Service struct {
	cache     *cache.Cache
	clock     ident.Clock
	pickEmoji func() string
}

func NewService(c *cache.Cache, clock ident.Clock) *Service {
	return &Service{
		cache: c,
		clock: clock,
		pickEmoji: func() string {
			return friendEmojis[rand.Intn(len(friendEmojis))]
		},
	}
}

// AddFriend creates a friend with a trimmed name and a random emoji from the
// palette.
func (s *Service) AddFriend(name string) model.Friend {
	friend := model.Friend{
		ID:        ident.NewID(),
		Name:      strings.TrimSpace(name),
		Emoji:     s.pickEmoji(),
		CreatedAt: s.clock.Now(),
	}
	s.cache.Update(func(data *model.Snapshot) {
		data.Friends = append(data.Friends, friend)
	})
	return friend
}

// Friends returns all friends.
func (s *Service) Friends() []model.Friend {
	return s.cache.Load().Friends
}

// FriendByID returns the friend, or nil when unknown.
func (s *Service) FriendByID(id string) *model.Friend {
	for _, f := range s.cache.Load().Friends {
		if f.ID == id {
			return &f
		}
	}
	return nil
}

// AddExpense records money a friend spent on the account holder's behalf and
// appends the created activity at the same timestamp. Rejecting non-positive
// amounts is the caller's responsibility; the ledger stores what it is given.
func (s *Service) AddExpense(amount float64, friendID, purpose string, tags []string) model.Expense {
	now := s.clock.Now()
	expense := model.Expense{
		ID:        ident.NewID(),
		Amount:    amount,
		FriendID:  friendID,
		Purpose:   purpose,
		Tags:      tags,
		CreatedAt: now,
		IsPaid:    false,
	}
	s.cache.Update(func(data *model.Snapshot) {
		data.Expenses = append(data.Expenses, expense)
		data.Activities = append(data.Activities, model.Activity{
			ID:        ident.NewID(),
			Type:      model.ActivityCreated,
			ExpenseID: expense.ID,
			FriendID:  expense.FriendID,
			Amount:    expense.Amount,
			CreatedAt: now,
		})
	})
	return expense
}

// Expenses returns all expenses.
func (s *Service) Expenses() []model.Expense {
	return s.cache.Load().Expenses
}

// ExpenseByID returns the expense, or nil when unknown.
func (s *Service) ExpenseByID(id string) *model.Expense {
	for _, e := range s.cache.Load().Expenses {
		if e.ID == id {
			return &e
		}
	}
	return nil
}

// MarkExpensePaid settles the whole expense: the remaining amount becomes
// zero, isPaid flips, and a settled activity records the remaining balance
// that closed it out. Already-paid or unknown ids are no-ops. Reports
// whether the expense was settled by this call.
func (s *Service) MarkExpensePaid(expenseID string) bool {
	settled := false
	s.cache.Update(func(data *model.Snapshot) {
		for i := range data.Expenses {
			if data.Expenses[i].ID != expenseID {
				continue
			}
			if data.Expenses[i].IsPaid {
				return
			}
			s.settle(data, &data.Expenses[i])
			settled = true
			return
		}
	})
	return settled
}

// MarkAllPaidForFriend settles every unpaid expense of the friend in one
// batch save.
func (s *Service) MarkAllPaidForFriend(friendID string) {
	s.cache.Update(func(data *model.Snapshot) {
		for i := range data.Expenses {
			if data.Expenses[i].FriendID == friendID && !data.Expenses[i].IsPaid {
				s.settle(data, &data.Expenses[i])
			}
		}
	})
}

// settle flips the expense to paid and appends the settled activity for the
// amount that was still outstanding. No activity is appended when nothing
// remained, so at most one settled entry ever exists per expense.
func (s *Service) settle(data *model.Snapshot, e *model.Expense) {
	remaining := e.Remaining()
	now := s.clock.Now()
	e.IsPaid = true
	e.PaidAt = &now
	e.PaidAmount = e.Amount
	if remaining > 0 {
		data.Activities = append(data.Activities, model.Activity{
			ID:        ident.NewID(),
			Type:      model.ActivitySettled,
			ExpenseID: e.ID,
			FriendID:  e.FriendID,
			Amount:    remaining,
			CreatedAt: now,
		})
	}
}

// ApplyPayment applies a partial payment to one expense. The amount is
// clamped to the expense's remaining balance; non-positive input, unknown
// ids, and already-settled expenses are no-ops. When the payment exhausts
// the remaining balance the expense is finalized and the settled activity
// records the applied amount; otherwise a payment activity is appended.
// Reports whether any amount was applied.
func (s *Service) ApplyPayment(expenseID string, amount float64) bool {
	applied := false
	s.cache.Update(func(data *model.Snapshot) {
		for i := range data.Expenses {
			if data.Expenses[i].ID == expenseID {
				applied = s.applyToExpense(data, &data.Expenses[i], amount) > 0
				return
			}
		}
	})
	return applied
}

// ApplyPaymentForFriend allocates a lump payment across the friend's
// outstanding expenses oldest-created-first. Each expense absorbs at most
// its remaining balance; any leftover beyond the friend's total pending is
// simply unused. One save covers every expense touched.
func (s *Service) ApplyPaymentForFriend(friendID string, amount float64) {
	if amount <= 0 {
		return
	}
	s.cache.Update(func(data *model.Snapshot) {
		pending := make([]*model.Expense, 0)
		for i := range data.Expenses {
			e := &data.Expenses[i]
			if e.FriendID == friendID && e.Remaining() > 0 {
				pending = append(pending, e)
			}
		}
		sort.SliceStable(pending, func(i, j int) bool {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		})

		left := amount
		for _, e := range pending {
			if left <= 0 {
				break
			}
			left -= s.applyToExpense(data, e, left)
		}
	})
}

// applyToExpense clamps and applies a payment to a single expense, appending
// the payment or settled activity. Returns the amount actually applied.
func (s *Service) applyToExpense(data *model.Snapshot, e *model.Expense, amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	remaining := e.Remaining()
	if remaining <= 0 {
		return 0
	}

	applied := amount
	if applied > remaining {
		applied = remaining
	}

	paidSoFar := e.PaidAmount
	if paidSoFar < 0 {
		paidSoFar = 0
	}
	newPaid := paidSoFar + applied
	e.PaidAmount = newPaid

	now := s.clock.Now()
	if newPaid >= e.Amount {
		e.IsPaid = true
		e.PaidAt = &now
		data.Activities = append(data.Activities, model.Activity{
			ID:        ident.NewID(),
			Type:      model.ActivitySettled,
			ExpenseID: e.ID,
			FriendID:  e.FriendID,
			Amount:    applied,
			CreatedAt: now,
		})
	} else {
		data.Activities = append(data.Activities, model.Activity{
			ID:        ident.NewID(),
			Type:      model.ActivityPayment,
			ExpenseID: e.ID,
			FriendID:  e.FriendID,
			Amount:    applied,
			CreatedAt: now,
		})
	}
	return applied
}

// FriendBalance returns the sum of remaining amounts over the friend's
// expenses, always recomputed from the snapshot.
func (s *Service) FriendBalance(friendID string) float64 {
	var sum float64
	for _, e := range s.cache.Load().Expenses {
		if e.FriendID == friendID {
			sum += e.Remaining()
		}
	}
	return sum
}

// TotalPending returns the sum of remaining amounts over all expenses.
func (s *Service) TotalPending() float64 {
	var sum float64
	for _, e := range s.cache.Load().Expenses {
		sum += e.Remaining()
	}
	return sum
}

// PendingExpensesForFriend returns the friend's expenses with a positive
// remaining balance.
func (s *Service) PendingExpensesForFriend(friendID string) []model.Expense {
	out := []model.Expense{}
	for _, e := range s.cache.Load().Expenses {
		if e.FriendID == friendID && e.Remaining() > 0 {
			out = append(out, e)
		}
	}
	return out
}

// SettledExpensesForFriend returns the friend's expenses with nothing left
// to pay.
func (s *Service) SettledExpensesForFriend(friendID string) []model.Expense {
	out := []model.Expense{}
	for _, e := range s.cache.Load().Expenses {
		if e.FriendID == friendID && e.Remaining() <= 0 {
			out = append(out, e)
		}
	}
	return out
}

// Activities returns the activity log newest-first, truncated to limit when
// limit is positive.
func (s *Service) Activities(limit int) []model.Activity {
	activities := s.cache.Load().Activities
	return sortAndTruncate(activities, limit)
}

// ActivitiesForFriend returns the friend's activity log newest-first.
func (s *Service) ActivitiesForFriend(friendID string, limit int) []model.Activity {
	activities := []model.Activity{}
	for _, a := range s.cache.Load().Activities {
		if a.FriendID == friendID {
			activities = append(activities, a)
		}
	}
	return sortAndTruncate(activities, limit)
}

func sortAndTruncate(activities []model.Activity, limit int) []model.Activity {
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
	if limit > 0 && len(activities) > limit {
		return activities[:limit]
	}
	return activities
}

// OwedFriend pairs a friend with their outstanding balance.
type OwedFriend struct {
	Friend model.Friend `json:"friend"`
	Amount float64      `json:"amount"`
}

// TopOwedFriends returns the friends with a positive balance, highest first.
// A non-positive limit defaults to three.
func (s *Service) TopOwedFriends(limit int) []OwedFriend {
	if limit <= 0 {
		limit = 3
	}
	data := s.cache.Load()

	remaining := make(map[string]float64, len(data.Friends))
	for _, e := range data.Expenses {
		remaining[e.FriendID] += e.Remaining()
	}

	owed := []OwedFriend{}
	for _, f := range data.Friends {
		if amount := remaining[f.ID]; amount > 0 {
			owed = append(owed, OwedFriend{Friend: f, Amount: amount})
		}
	}
	sort.SliceStable(owed, func(i, j int) bool {
		return owed[i].Amount > owed[j].Amount
	})
	if len(owed) > limit {
		owed = owed[:limit]
	}
	return owed
}
