package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/binshadcs/settle-up/internal/model"
)

// signedContent is the snapshot minus meta: the update timestamp itself must
// not participate in the comparison, or every save would look like a change.
type signedContent struct {
	Friends    []model.Friend   `json:"friends"`
	Expenses   []model.Expense  `json:"expenses"`
	Activities []model.Activity `json:"activities"`
}

// Signature returns a stable digest of the snapshot content. Entries are
// ordered by id before hashing so that slice order does not affect the
// comparison.
func Signature(s model.Snapshot) string {
	content := signedContent{
		Friends:    append([]model.Friend(nil), s.Friends...),
		Expenses:   append([]model.Expense(nil), s.Expenses...),
		Activities: append([]model.Activity(nil), s.Activities...),
	}
	sort.Slice(content.Friends, func(i, j int) bool { return content.Friends[i].ID < content.Friends[j].ID })
	sort.Slice(content.Expenses, func(i, j int) bool { return content.Expenses[i].ID < content.Expenses[j].ID })
	sort.Slice(content.Activities, func(i, j int) bool { return content.Activities[i].ID < content.Activities[j].ID })

	data, err := json.Marshal(content)
	if err != nil {
		// Marshal cannot fail for these types; keep the signature unique anyway.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
