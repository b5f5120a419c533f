// Package cart holds the shopping cart ledger: an ordered set of lines keyed
// by product, merged on add and clamped to a per-line maximum.
package cart

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultMaxQuantity bounds a line when the caller does not supply one.
const DefaultMaxQuantity = 999

var (
	ErrInvalidQuantity = errors.New("quantity must not be negative")
	ErrInvalidPrice    = errors.New("unit price must not be negative")
	ErrMissingProduct  = errors.New("product id required")
)

// Line is a single cart entry. ProductID identifies the line; for custom
// sized products it is an opaque composite id.
type Line struct {
	ProductID   string          `json:"product_id"`
	DisplayName string          `json:"display_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	MaxQuantity int             `json:"max_quantity"`
	ImageRef    string          `json:"image_ref,omitempty"`
}

// Subtotal returns UnitPrice * Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Ledger is the in-memory cart. It is not safe for concurrent use.
type Ledger struct {
	lines []Line
	index map[string]int
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{index: make(map[string]int)}
}

// AddItem inserts a line or merges it into an existing one with the same
// ProductID. A zero quantity adds one unit. Quantities above MaxQuantity are
// clamped without error; on merge the tighter of the stored and the new bound
// applies and is kept on the line.
func (l *Ledger) AddItem(line Line) error {
	if line.ProductID == "" {
		return ErrMissingProduct
	}
	if line.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if line.UnitPrice.IsNegative() {
		return ErrInvalidPrice
	}
	if line.Quantity == 0 {
		line.Quantity = 1
	}
	if line.MaxQuantity <= 0 {
		line.MaxQuantity = DefaultMaxQuantity
	}

	if i, ok := l.index[line.ProductID]; ok {
		existing := &l.lines[i]
		existing.MaxQuantity = min(existing.MaxQuantity, line.MaxQuantity)
		existing.Quantity = min(existing.Quantity+line.Quantity, existing.MaxQuantity)
		return nil
	}

	line.Quantity = min(line.Quantity, line.MaxQuantity)
	if l.index == nil {
		l.index = make(map[string]int)
	}
	l.index[line.ProductID] = len(l.lines)
	l.lines = append(l.lines, line)
	return nil
}

// RemoveItem deletes the line if present.
func (l *Ledger) RemoveItem(productID string) {
	i, ok := l.index[productID]
	if !ok {
		return
	}
	l.lines = append(l.lines[:i], l.lines[i+1:]...)
	l.reindex()
}

// SetQuantity replaces a line's quantity. Non-positive values remove the line.
// It reports whether the line exists.
func (l *Ledger) SetQuantity(productID string, quantity int) bool {
	i, ok := l.index[productID]
	if !ok {
		return false
	}
	if quantity <= 0 {
		l.RemoveItem(productID)
		return true
	}
	l.lines[i].Quantity = min(quantity, l.lines[i].MaxQuantity)
	return true
}

// Clear removes all lines.
func (l *Ledger) Clear() {
	l.lines = nil
	clear(l.index)
}

// TotalItemCount is the sum of quantities over all lines.
func (l *Ledger) TotalItemCount() int {
	n := 0
	for _, line := range l.lines {
		n += line.Quantity
	}
	return n
}

// TotalPrice is the sum of line subtotals.
func (l *Ledger) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, line := range l.lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Lines returns a copy of the lines in insertion order.
func (l *Ledger) Lines() []Line {
	out := make([]Line, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *Ledger) Line(productID string) (Line, bool) {
	i, ok := l.index[productID]
	if !ok {
		return Line{}, false
	}
	return l.lines[i], true
}

func (l *Ledger) IsEmpty() bool {
	return len(l.lines) == 0
}

// Fingerprint digests the priced contents of the cart. Two ledgers with the
// same lines in the same order share a fingerprint.
func (l *Ledger) Fingerprint() string {
	h := sha256.New()
	for _, line := range l.lines {
		_, _ = fmt.Fprintf(h, "%s|%s|%d\n", line.ProductID, line.UnitPrice.String(), line.Quantity)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (l *Ledger) reindex() {
	clear(l.index)
	for i, line := range l.lines {
		l.index[line.ProductID] = i
	}
}

// Snapshot is the persisted form of a ledger.
type Snapshot struct {
	Lines []Line `json:"lines"`
}

func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{Lines: l.Lines()}
}

// Restore replaces the ledger contents with a snapshot. Lines are re-added so
// duplicates merge and bounds are enforced.
func (l *Ledger) Restore(s Snapshot) error {
	l.Clear()
	for _, line := range s.Lines {
		if err := l.AddItem(line); err != nil {
			return errors.Wrapf(err, "restore line %q", line.ProductID)
		}
	}
	return nil
}
