// Package settlement marks batches of ledger lines as paid under one
// transaction id.
package settlement

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/obligations/internal/clients"
	"github.com/odyssey-erp/obligations/internal/ledger"
)

var (
	// ErrEmptySelection is returned when a batch carries no keys.
	ErrEmptySelection = errors.New("settlement: empty selection")
	// ErrNothingSettled is returned when no selected key resolves to a line.
	ErrNothingSettled = errors.New("settlement: no selected line could be resolved")
)

// PaidPeriod is one settled period inside a receipt.
type PaidPeriod struct {
	ClientID string          `json:"clientId"`
	Period   string          `json:"period"`
	Label    string          `json:"label"`
	Amount   decimal.Decimal `json:"amount"`
}

// Summary is the receipt of one client within a batch.
type Summary struct {
	TransactionID string          `json:"transactionId"`
	ClientID      string          `json:"clientId"`
	ClientName    string          `json:"clientName"`
	ClientRUC     string          `json:"clientRuc"`
	PaymentDate   time.Time       `json:"paymentDate"`
	PaidPeriods   []PaidPeriod    `json:"paidPeriods"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

// Result is the outcome of a batch.
type Result struct {
	Clients       []clients.Client `json:"-"`
	TransactionID string           `json:"transactionId"`
	TotalPaid     decimal.Decimal  `json:"totalPaid"`
	Periods       []PaidPeriod     `json:"periods"`
	// Receipts holds one summary per client, in the order clients were first
	// touched by the selection.
	Receipts []Summary `json:"receipts"`
}

// Last returns the receipt of the last client touched by the batch.
func (r Result) Last() (Summary, bool) {
	if len(r.Receipts) == 0 {
		return Summary{}, false
	}
	last := r.Periods[len(r.Periods)-1].ClientID
	for _, s := range r.Receipts {
		if s.ClientID == last {
			return s, true
		}
	}
	return r.Receipts[len(r.Receipts)-1], true
}

// Receipt returns the summary of one client.
func (r Result) Receipt(clientID string) (Summary, bool) {
	for _, s := range r.Receipts {
		if s.ClientID == clientID {
			return s, true
		}
	}
	return Summary{}, false
}

// NewTransactionID renders a fresh batch id as TX-XXXXXXXX.
func NewTransactionID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TX-" + strings.ToUpper(raw[:8])
}

// Settle marks every resolvable selected key as paid on a deep copy of list.
// Keys resolve against items, the lines the operator was shown; unresolved
// keys, keys whose client vanished and periods already paid in list are
// skipped. list is never mutated.
func Settle(list []clients.Client, keys []string, items []ledger.Item, now time.Time, txID string) (Result, error) {
	if len(keys) == 0 {
		return Result{}, ErrEmptySelection
	}
	byKey := make(map[string]ledger.Item, len(items))
	for _, it := range items {
		if _, ok := byKey[it.Key]; !ok {
			byKey[it.Key] = it
		}
	}

	next := clients.CloneAll(list)
	index := make(map[string]int, len(next))
	for i, c := range next {
		if _, ok := index[c.ID]; !ok {
			index[c.ID] = i
		}
	}

	res := Result{TransactionID: txID, TotalPaid: decimal.Zero}
	receipts := make(map[string]int)
	seen := make(map[string]struct{}, len(keys))

	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		item, ok := byKey[key]
		if !ok {
			continue
		}
		pos, ok := index[item.ClientID]
		if !ok {
			continue
		}
		client := &next[pos]
		if decl, ok := client.Declaration(item.Period); ok && decl.Status == clients.StatusPagada {
			continue
		}
		client.Upsert(paidDeclaration(*client, item, now, txID))

		paid := PaidPeriod{ClientID: client.ID, Period: item.Period, Label: item.PeriodLabel, Amount: item.Amount}
		res.TotalPaid = res.TotalPaid.Add(item.Amount)
		res.Periods = append(res.Periods, paid)

		r, ok := receipts[client.ID]
		if !ok {
			r = len(res.Receipts)
			receipts[client.ID] = r
			res.Receipts = append(res.Receipts, Summary{
				TransactionID: txID,
				ClientID:      client.ID,
				ClientName:    client.DisplayName(),
				ClientRUC:     client.RUC,
				PaymentDate:   now,
				TotalAmount:   decimal.Zero,
			})
		}
		res.Receipts[r].PaidPeriods = append(res.Receipts[r].PaidPeriods, paid)
		res.Receipts[r].TotalAmount = res.Receipts[r].TotalAmount.Add(item.Amount)
	}

	if len(res.Periods) == 0 {
		return Result{}, ErrNothingSettled
	}
	res.Clients = next
	return res, nil
}

func paidDeclaration(c clients.Client, item ledger.Item, now time.Time, txID string) clients.Declaration {
	paidAt := now
	amount := item.Amount
	decl, ok := c.Declaration(item.Period)
	if !ok {
		declaredAt := now
		decl = clients.Declaration{Period: item.Period, DeclaredAt: &declaredAt}
	}
	decl.Status = clients.StatusPagada
	decl.PaidAt = &paidAt
	decl.TransactionID = txID
	decl.Amount = &amount
	decl.UpdatedAt = now
	return decl
}
