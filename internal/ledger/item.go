package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/obligations/internal/clients"
	"github.com/odyssey-erp/obligations/internal/obligations"
)

// Bucket names one of the three disjoint ledger sections.
type Bucket string

const (
	BucketReceivable Bucket = "receivable"
	BucketProjected  Bucket = "projected"
	BucketCollected  Bucket = "collected"
)

// Item is a derived ledger line. Items are recomputed on every pass and are
// never persisted.
type Item struct {
	Key            string                    `json:"key"`
	ClientID       string                    `json:"clientId"`
	ClientName     string                    `json:"clientName"`
	RUC            string                    `json:"ruc"`
	Period         string                    `json:"period"`
	PeriodLabel    string                    `json:"periodLabel"`
	Amount         decimal.Decimal           `json:"amount"`
	Status         clients.DeclarationStatus `json:"status"`
	ObligationType obligations.Type          `json:"obligationType"`
	ReferenceDate  time.Time                 `json:"referenceDate"`
	DaysDiff       *int                      `json:"daysDiff,omitempty"`
	// IsVirtual marks ghost debt: an expected period with no declaration.
	IsVirtual bool `json:"isVirtual"`
}

// ItemKey builds the composite selection key of a ledger line.
func ItemKey(clientID, period string) string {
	return clientID + "-" + period
}

// Result holds the three buckets of one reconciliation pass.
type Result struct {
	AsOf       time.Time `json:"asOf"`
	Filter     string    `json:"filter"`
	Receivable []Item    `json:"receivable"`
	Projected  []Item    `json:"projected"`
	Collected  []Item    `json:"collected"`
}

// Items returns every line across buckets, receivable first.
func (r Result) Items() []Item {
	out := make([]Item, 0, len(r.Receivable)+len(r.Projected)+len(r.Collected))
	out = append(out, r.Receivable...)
	out = append(out, r.Projected...)
	return append(out, r.Collected...)
}

// Find looks a line up by composite key.
func (r Result) Find(key string) (Item, Bucket, bool) {
	for _, b := range []struct {
		name  Bucket
		items []Item
	}{
		{BucketReceivable, r.Receivable},
		{BucketProjected, r.Projected},
		{BucketCollected, r.Collected},
	} {
		for _, it := range b.items {
			if it.Key == key {
				return it, b.name, true
			}
		}
	}
	return Item{}, "", false
}

// BucketTotal aggregates one bucket.
type BucketTotal struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// Totals aggregates all buckets.
type Totals struct {
	Receivable BucketTotal `json:"receivable"`
	Projected  BucketTotal `json:"projected"`
	Collected  BucketTotal `json:"collected"`
	// Virtual counts ghost-debt lines across receivable and projected.
	Virtual int `json:"virtual"`
}

// Totals sums every bucket.
func (r Result) Totals() Totals {
	var t Totals
	t.Receivable = sum(r.Receivable)
	t.Projected = sum(r.Projected)
	t.Collected = sum(r.Collected)
	for _, it := range r.Receivable {
		if it.IsVirtual {
			t.Virtual++
		}
	}
	for _, it := range r.Projected {
		if it.IsVirtual {
			t.Virtual++
		}
	}
	return t
}

func sum(items []Item) BucketTotal {
	total := BucketTotal{Count: len(items), Amount: decimal.Zero}
	for _, it := range items {
		total.Amount = total.Amount.Add(it.Amount)
	}
	return total
}
