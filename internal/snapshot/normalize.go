// Package snapshot repairs untrusted persisted payloads into valid snapshots
// and provides the canonical content signature used for write coalescing.
// Everything after this boundary works with invariant-respecting structures.
package snapshot

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/binshadcs/settle-up/internal/ident"
	"github.com/binshadcs/settle-up/internal/model"
)

// rawSnapshot defers decoding of each field so one malformed field never
// poisons the rest of the payload.
type rawSnapshot struct {
	Friends    json.RawMessage `json:"friends"`
	Expenses   json.RawMessage `json:"expenses"`
	Activities json.RawMessage `json:"activities"`
	Meta       json.RawMessage `json:"meta"`
}

// Decode parses an arbitrary persisted payload into a normalized snapshot.
// It never fails: malformed fields degrade to empty, and a missing or
// non-array activities field is synthesized from the expenses.
func Decode(data []byte) model.Snapshot {
	var raw rawSnapshot
	_ = json.Unmarshal(data, &raw)

	var s model.Snapshot
	if raw.Friends != nil {
		var friends []model.Friend
		if json.Unmarshal(raw.Friends, &friends) == nil {
			s.Friends = friends
		}
	}
	if raw.Expenses != nil {
		var expenses []model.Expense
		if json.Unmarshal(raw.Expenses, &expenses) == nil {
			s.Expenses = expenses
		}
	}
	if raw.Activities != nil {
		var activities []model.Activity
		if json.Unmarshal(raw.Activities, &activities) == nil {
			s.Activities = activities
		}
	}
	if raw.Meta != nil {
		var meta model.Meta
		if json.Unmarshal(raw.Meta, &meta) == nil {
			s.Meta = meta
		}
	}
	return Normalize(s)
}

// Normalize coerces a snapshot into a valid, de-duplicated one. Nil slices
// become empty, ids are de-duplicated keeping the last occurrence, a nil
// activities slice is rebuilt from the expenses, and a missing meta.updatedAt
// is derived from the newest timestamp in the structure. Idempotent.
func Normalize(s model.Snapshot) model.Snapshot {
	out := model.Snapshot{
		Friends:  dedupeFriends(s.Friends),
		Expenses: dedupeExpenses(s.Expenses),
		Meta:     s.Meta,
	}
	if s.Activities == nil {
		out.Activities = buildActivities(out.Expenses)
	} else {
		out.Activities = dedupeActivities(s.Activities)
	}
	if out.Meta.UpdatedAt.IsZero() {
		out.Meta.UpdatedAt = latestTimestamp(out)
	}
	return out
}

// buildActivities reconstructs the activity log for snapshots persisted
// before activities existed: one created entry per expense, plus one settled
// entry per already-paid expense, newest first.
func buildActivities(expenses []model.Expense) []model.Activity {
	activities := make([]model.Activity, 0, len(expenses))
	for _, e := range expenses {
		activities = append(activities, model.Activity{
			ID:        ident.NewID(),
			Type:      model.ActivityCreated,
			ExpenseID: e.ID,
			FriendID:  e.FriendID,
			Amount:    e.Amount,
			CreatedAt: e.CreatedAt,
		})
		if e.PaidAt != nil {
			activities = append(activities, model.Activity{
				ID:        ident.NewID(),
				Type:      model.ActivitySettled,
				ExpenseID: e.ID,
				FriendID:  e.FriendID,
				Amount:    e.Amount,
				CreatedAt: *e.PaidAt,
			})
		}
	}
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
	return activities
}

func dedupeFriends(in []model.Friend) []model.Friend {
	out := make([]model.Friend, 0, len(in))
	index := make(map[string]int, len(in))
	for _, f := range in {
		if i, ok := index[f.ID]; ok {
			out[i] = f
			continue
		}
		index[f.ID] = len(out)
		out = append(out, f)
	}
	return out
}

func dedupeExpenses(in []model.Expense) []model.Expense {
	out := make([]model.Expense, 0, len(in))
	index := make(map[string]int, len(in))
	for _, e := range in {
		if i, ok := index[e.ID]; ok {
			out[i] = e
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}

func dedupeActivities(in []model.Activity) []model.Activity {
	out := make([]model.Activity, 0, len(in))
	index := make(map[string]int, len(in))
	for _, a := range in {
		if i, ok := index[a.ID]; ok {
			out[i] = a
			continue
		}
		index[a.ID] = len(out)
		out = append(out, a)
	}
	return out
}

// latestTimestamp returns the newest createdAt/paidAt found anywhere in the
// snapshot, or the Unix epoch when the snapshot holds no timestamps at all.
func latestTimestamp(s model.Snapshot) time.Time {
	latest := time.Unix(0, 0).UTC()
	consider := func(t time.Time) {
		if t.After(latest) {
			latest = t
		}
	}
	for _, f := range s.Friends {
		consider(f.CreatedAt)
	}
	for _, e := range s.Expenses {
		consider(e.CreatedAt)
		if e.PaidAt != nil {
			consider(*e.PaidAt)
		}
	}
	for _, a := range s.Activities {
		consider(a.CreatedAt)
	}
	return latest
}
