package ledger

import (
	"sort"
	"time"

	"github.com/odyssey-erp/obligations/internal/clients"
	"github.com/odyssey-erp/obligations/internal/obligations"
)

// Card derives the portfolio card of one client from the lines Reconcile
// would emit for it. A receivable line past its deadline makes the card
// vencida whatever its period.
func (e *Engine) Card(c clients.Client, asOf time.Time) obligations.Card {
	typ := obligations.TypeOf(c)
	period := e.calendar.Period(c, asOf)
	card := obligations.Card{ClientID: c.ID, Type: typ, Period: period, Label: e.calendar.Label(period)}
	if due, ok := e.calendar.DueDate(c, period); ok {
		card.DueDate = &due
	}
	if !c.IsActive() {
		card.Status = obligations.StatusInactiva
		return card
	}

	var lines Result
	e.reconcileClient(&lines, c, typ, asOf)
	for _, it := range lines.Receivable {
		if deref(it.DaysDiff) > 0 {
			card.Overdue = append(card.Overdue, it.Period)
		}
	}
	if len(card.Overdue) > 0 {
		sort.Strings(card.Overdue)
		card.Status = obligations.StatusVencida
		return card
	}

	decl, found := c.Declaration(period)
	switch {
	case found && decl.Status == clients.StatusPagada && len(lines.Receivable) == 0:
		card.Status = obligations.StatusPagada
	case found && decl.Status == clients.StatusPagada:
		// An earlier period is still owed, though not yet late.
		card.Status = obligations.StatusPendiente
	case found && decl.IsDeclared():
		card.Status = obligations.StatusEnviada
	default:
		card.Status = obligations.StatusPendiente
	}
	return card
}
