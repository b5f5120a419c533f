// Package wishlist holds the saved-for-later ledger: a set of products keyed
// by product id where the first write wins.
package wishlist

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry is a saved product with the display data captured when it was added.
type Entry struct {
	ProductID    string              `json:"product_id"`
	DisplayName  string              `json:"display_name"`
	UnitPrice    decimal.Decimal     `json:"unit_price"`
	ComparePrice decimal.NullDecimal `json:"compare_price"`
	ImageRef     string              `json:"image_ref,omitempty"`
	AddedAt      time.Time           `json:"added_at"`
}

// Ledger is the in-memory wishlist. It is not safe for concurrent use.
type Ledger struct {
	entries []Entry
}

func New() *Ledger {
	return &Ledger{}
}

// AddItem stores the entry unless the product is already present, in which
// case the existing entry is kept untouched. It reports whether it inserted.
func (l *Ledger) AddItem(e Entry) bool {
	if e.ProductID == "" || l.Contains(e.ProductID) {
		return false
	}
	l.entries = append(l.entries, e)
	return true
}

func (l *Ledger) RemoveItem(productID string) {
	for i, e := range l.entries {
		if e.ProductID == productID {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *Ledger) Contains(productID string) bool {
	_, ok := l.Entry(productID)
	return ok
}

func (l *Ledger) Entry(productID string) (Entry, bool) {
	for _, e := range l.entries {
		if e.ProductID == productID {
			return e, true
		}
	}
	return Entry{}, false
}

func (l *Ledger) Clear() {
	l.entries = nil
}

func (l *Ledger) Count() int {
	return len(l.entries)
}

// Entries returns a copy of the entries in insertion order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Snapshot is the persisted form of a ledger.
type Snapshot struct {
	Entries []Entry `json:"entries"`
}

func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{Entries: l.Entries()}
}

func (l *Ledger) Restore(s Snapshot) {
	l.Clear()
	for _, e := range s.Entries {
		l.AddItem(e)
	}
}
