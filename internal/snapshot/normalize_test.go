package snapshot

import (
	"testing"
	"time"

	"github.com/binshadcs/settle-up/internal/model"
)

func TestDecodeGarbage(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte(``),
		[]byte(`not json at all`),
		[]byte(`42`),
		[]byte(`{"friends": "nope", "expenses": {"a": 1}, "activities": 7}`),
	}
	for _, in := range inputs {
		s := Decode(in)
		if s.Friends == nil || s.Expenses == nil || s.Activities == nil {
			t.Errorf("Decode(%q) returned nil slices", in)
		}
		if len(s.Friends) != 0 || len(s.Expenses) != 0 || len(s.Activities) != 0 {
			t.Errorf("Decode(%q) invented data", in)
		}
	}
}

func TestDecodePartialDamage(t *testing.T) {
	// A malformed activities field must not take the valid friends down with it.
	in := []byte(`{"friends": [{"id": "f1", "name": "Asha"}], "activities": "broken"}`)
	s := Decode(in)
	if len(s.Friends) != 1 || s.Friends[0].Name != "Asha" {
		t.Fatalf("friends = %+v, want Asha preserved", s.Friends)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	paidAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := Normalize(model.Snapshot{
		Friends: []model.Friend{
			{ID: "f1", Name: "Asha", CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		},
		Expenses: []model.Expense{
			{ID: "e1", Amount: 500, FriendID: "f1", CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), PaidAt: &paidAt},
		},
	})

	again := Normalize(s)
	if Signature(s) != Signature(again) {
		t.Error("normalize is not idempotent")
	}
	if !s.Meta.UpdatedAt.Equal(again.Meta.UpdatedAt) {
		t.Errorf("meta drifted: %v vs %v", s.Meta.UpdatedAt, again.Meta.UpdatedAt)
	}
}

func TestNormalizeDeduplicatesLastWins(t *testing.T) {
	s := Normalize(model.Snapshot{
		Friends: []model.Friend{
			{ID: "f1", Name: "old"},
			{ID: "f2", Name: "keep"},
			{ID: "f1", Name: "new"},
		},
		Activities: []model.Activity{},
	})
	if len(s.Friends) != 2 {
		t.Fatalf("friends = %d, want 2", len(s.Friends))
	}
	if s.Friends[0].Name != "new" {
		t.Errorf("duplicate id kept %q, want last occurrence", s.Friends[0].Name)
	}
}

func TestNormalizeSynthesizesActivities(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	paidAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := Normalize(model.Snapshot{
		Expenses: []model.Expense{
			{ID: "e1", Amount: 500, FriendID: "f1", CreatedAt: created, IsPaid: true, PaidAt: &paidAt, PaidAmount: 500},
			{ID: "e2", Amount: 200, FriendID: "f1", CreatedAt: created.Add(time.Hour)},
		},
	})

	if len(s.Activities) != 3 {
		t.Fatalf("activities = %d, want 3 (two created + one settled)", len(s.Activities))
	}
	// Newest first: e1 settled (Mar 2), e2 created (11:00), e1 created (10:00).
	if s.Activities[0].Type != model.ActivitySettled || s.Activities[0].ExpenseID != "e1" {
		t.Errorf("activities[0] = %+v, want settled e1", s.Activities[0])
	}
	if s.Activities[1].Type != model.ActivityCreated || s.Activities[1].ExpenseID != "e2" {
		t.Errorf("activities[1] = %+v, want created e2", s.Activities[1])
	}
	if s.Activities[2].ExpenseID != "e1" {
		t.Errorf("activities[2] = %+v, want created e1", s.Activities[2])
	}
}

func TestNormalizeKeepsEmptyActivities(t *testing.T) {
	// An explicitly empty log is data, not absence; nothing is synthesized.
	s := Normalize(model.Snapshot{
		Expenses:   []model.Expense{{ID: "e1", Amount: 100, CreatedAt: time.Now()}},
		Activities: []model.Activity{},
	})
	if len(s.Activities) != 0 {
		t.Errorf("activities = %d, want 0", len(s.Activities))
	}
}

func TestNormalizeDerivesMeta(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	paidAt := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	s := Normalize(model.Snapshot{
		Friends: []model.Friend{{ID: "f1", CreatedAt: created}},
		Expenses: []model.Expense{
			{ID: "e1", Amount: 1, CreatedAt: created, PaidAt: &paidAt},
		},
		Activities: []model.Activity{},
	})
	if !s.Meta.UpdatedAt.Equal(paidAt) {
		t.Errorf("meta.updatedAt = %v, want newest timestamp %v", s.Meta.UpdatedAt, paidAt)
	}

	empty := Normalize(model.Snapshot{})
	if !empty.Meta.UpdatedAt.Equal(time.Unix(0, 0).UTC()) {
		t.Errorf("empty snapshot meta = %v, want epoch", empty.Meta.UpdatedAt)
	}
}

func TestNormalizeKeepsExistingMeta(t *testing.T) {
	stamp := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	s := Normalize(model.Snapshot{Meta: model.Meta{UpdatedAt: stamp}})
	if !s.Meta.UpdatedAt.Equal(stamp) {
		t.Errorf("meta = %v, want %v preserved", s.Meta.UpdatedAt, stamp)
	}
}

func TestSignatureIgnoresOrderAndMeta(t *testing.T) {
	f1 := model.Friend{ID: "f1", Name: "Asha"}
	f2 := model.Friend{ID: "f2", Name: "Bob"}

	a := model.Snapshot{Friends: []model.Friend{f1, f2}, Meta: model.Meta{UpdatedAt: time.Now()}}
	b := model.Snapshot{Friends: []model.Friend{f2, f1}, Meta: model.Meta{UpdatedAt: time.Now().Add(time.Hour)}}

	if Signature(a) != Signature(b) {
		t.Error("signature depends on slice order or meta")
	}

	c := model.Snapshot{Friends: []model.Friend{f1}}
	if Signature(a) == Signature(c) {
		t.Error("different content produced the same signature")
	}
}
