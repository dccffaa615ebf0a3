// Package ledger reconciles declaration history against the expected filing
// calendar and splits the portfolio into receivable, projected and collected
// lines.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/obligations/internal/clients"
	"github.com/odyssey-erp/obligations/internal/fees"
	"github.com/odyssey-erp/obligations/internal/obligations"
)

// MinimumFee is the smallest amount a ledger line may carry.
var MinimumFee = decimal.RequireFromString("5.00")

// EffectiveFee applies the fee floor.
func EffectiveFee(lookup fees.Lookup, c clients.Client) decimal.Decimal {
	if lookup == nil {
		return MinimumFee
	}
	return decimal.Max(lookup.Fee(c), MinimumFee)
}

// Engine is a pure reconciliation function of clients, fees and a reference
// date. It holds no state between calls.
type Engine struct {
	calendar obligations.Calendar
	fees     fees.Lookup
}

// NewEngine wires the calendar and fee collaborators.
func NewEngine(calendar obligations.Calendar, lookup fees.Lookup) *Engine {
	if calendar == nil {
		calendar = obligations.NewSRICalendar()
	}
	return &Engine{calendar: calendar, fees: lookup}
}

// Calendar exposes the calendar used by the engine.
func (e *Engine) Calendar() obligations.Calendar {
	return e.calendar
}

// Reconcile classifies every active client's history and ghost debt as of
// asOf. Identical inputs always produce identical ordering.
func (e *Engine) Reconcile(list []clients.Client, asOf time.Time, filter obligations.Filter) Result {
	res := Result{
		AsOf:       asOf,
		Filter:     filter.String(),
		Receivable: make([]Item, 0),
		Projected:  make([]Item, 0),
		Collected:  make([]Item, 0),
	}
	for _, c := range list {
		if !c.IsActive() {
			continue
		}
		typ := obligations.TypeOf(c)
		if !filter.Matches(typ) {
			continue
		}
		e.reconcileClient(&res, c, typ, asOf)
	}
	sortResult(&res)
	return res
}

func (e *Engine) reconcileClient(res *Result, c clients.Client, typ obligations.Type, asOf time.Time) {
	fee := EffectiveFee(e.fees, c)
	processed := c.Periods()
	emitted := make(map[string]struct{}, len(c.Declarations))

	for _, decl := range c.Declarations {
		if _, dup := emitted[decl.Period]; dup {
			continue
		}
		emitted[decl.Period] = struct{}{}
		amount := fee
		if decl.Amount != nil {
			amount = *decl.Amount
		}
		switch decl.Status {
		case clients.StatusPagada:
			if decl.PaidAt == nil || decl.PaidAt.IsZero() || !obligations.SameMonth(*decl.PaidAt, asOf) {
				continue
			}
			item := e.item(c, typ, decl.Period, amount, decl.Status, *decl.PaidAt)
			res.Collected = append(res.Collected, item)
		case clients.StatusEnviada, clients.StatusPendiente:
			ref := e.referenceDate(c, decl.Period, asOf)
			item := e.item(c, typ, decl.Period, amount, decl.Status, ref)
			item.DaysDiff = daysDiff(asOf, ref)
			res.Receivable = append(res.Receivable, item)
		}
	}

	for _, period := range obligations.AuditPeriods(e.calendar, c, typ, asOf) {
		if _, ok := processed[period]; ok {
			continue
		}
		processed[period] = struct{}{}
		ref := e.referenceDate(c, period, asOf)
		item := e.item(c, typ, period, fee, clients.StatusPendiente, ref)
		item.IsVirtual = true
		item.DaysDiff = daysDiff(asOf, ref)
		if *item.DaysDiff > 0 {
			res.Receivable = append(res.Receivable, item)
		} else {
			res.Projected = append(res.Projected, item)
		}
	}
}

// referenceDate falls back to asOf when the due date is unknown, which
// yields a zero day difference and keeps ghost debt out of receivables.
func (e *Engine) referenceDate(c clients.Client, period string, asOf time.Time) time.Time {
	if due, ok := e.calendar.DueDate(c, period); ok {
		return due
	}
	return asOf
}

func (e *Engine) item(c clients.Client, typ obligations.Type, period string, amount decimal.Decimal, status clients.DeclarationStatus, ref time.Time) Item {
	return Item{
		Key:            ItemKey(c.ID, period),
		ClientID:       c.ID,
		ClientName:     c.DisplayName(),
		RUC:            c.RUC,
		Period:         period,
		PeriodLabel:    e.calendar.Label(period),
		Amount:         amount,
		Status:         status,
		ObligationType: typ,
		ReferenceDate:  ref,
	}
}

func daysDiff(asOf, ref time.Time) *int {
	d := obligations.DaysBetween(asOf, ref)
	return &d
}

func sortResult(res *Result) {
	col := collate.New(language.Spanish, collate.IgnoreCase)
	byName := func(a, b Item) int {
		if c := col.CompareString(a.ClientName, b.ClientName); c != 0 {
			return c
		}
		if a.ClientID != b.ClientID {
			if a.ClientID < b.ClientID {
				return -1
			}
			return 1
		}
		switch {
		case a.Period < b.Period:
			return -1
		case a.Period > b.Period:
			return 1
		}
		return 0
	}

	sort.SliceStable(res.Receivable, func(i, j int) bool {
		a, b := res.Receivable[i], res.Receivable[j]
		da, db := deref(a.DaysDiff), deref(b.DaysDiff)
		if da != db {
			return da > db
		}
		return byName(a, b) < 0
	})
	sort.SliceStable(res.Collected, func(i, j int) bool {
		a, b := res.Collected[i], res.Collected[j]
		if !a.ReferenceDate.Equal(b.ReferenceDate) {
			return a.ReferenceDate.After(b.ReferenceDate)
		}
		return byName(a, b) < 0
	})
	sort.SliceStable(res.Projected, func(i, j int) bool {
		return byName(res.Projected[i], res.Projected[j]) < 0
	})
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
