// Package format holds the presentation-facing display helpers: currency
// and date rendering for handlers and any other consumer of the ledger.
package format

import (
	"fmt"
	"math"
	"time"

	"github.com/Rhymond/go-money"
)

// rupees renders whole-rupee amounts without fraction digits, matching how
// balances are displayed throughout the app.
var rupees = money.NewFormatter(0, ".", ",", "₹", "$1")

// Currency renders an amount as whole rupees, e.g. ₹1,250.
func Currency(amount float64) string {
	return rupees.Format(int64(math.Round(amount)))
}

// RelativeTime renders how long ago t was, coarsening with age:
// "just now", "5m ago", "3h ago", "2d ago", then a short date.
func RelativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	mins := int(diff.Minutes())
	hours := int(diff.Hours())
	days := hours / 24

	switch {
	case mins < 1:
		return "just now"
	case mins < 60:
		return fmt.Sprintf("%dm ago", mins)
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2 Jan")
	}
}

// ShortDate renders a compact absolute date, e.g. "5 Mar 2026".
func ShortDate(t time.Time) string {
	return t.Format("2 Jan 2006")
}
