package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/obligations/internal/clients"
	"github.com/odyssey-erp/obligations/internal/obligations"
)

func TestEngineCard(t *testing.T) {
	e := newEngine("20")
	asOf := day(2024, time.March, 20)
	paidAt := day(2024, time.March, 5)
	base := clients.Client{ID: "c1", RUC: ruc10, Category: "Mensual"}

	t.Run("missing prior month is overdue", func(t *testing.T) {
		card := e.Card(base, asOf)
		require.Equal(t, obligations.StatusVencida, card.Status)
		require.Equal(t, []string{"2024-02"}, card.Overdue)
		require.Equal(t, "2024-03", card.Period)
		require.Equal(t, "Marzo 2024", card.Label)
	})

	t.Run("prior paid current pending", func(t *testing.T) {
		c := base.Clone()
		c.Declarations = []clients.Declaration{{Period: "2024-02", Status: clients.StatusPagada, PaidAt: &paidAt}}
		card := e.Card(c, asOf)
		require.Equal(t, obligations.StatusPendiente, card.Status)
		require.Empty(t, card.Overdue)
	})

	t.Run("current declared", func(t *testing.T) {
		c := base.Clone()
		c.Declarations = []clients.Declaration{
			{Period: "2024-02", Status: clients.StatusPagada, PaidAt: &paidAt},
			{Period: "2024-03", Status: clients.StatusEnviada},
		}
		require.Equal(t, obligations.StatusEnviada, e.Card(c, asOf).Status)
	})

	t.Run("current paid", func(t *testing.T) {
		c := base.Clone()
		c.Declarations = []clients.Declaration{
			{Period: "2024-02", Status: clients.StatusPagada, PaidAt: &paidAt},
			{Period: "2024-03", Status: clients.StatusPagada, PaidAt: &paidAt},
		}
		require.Equal(t, obligations.StatusPagada, e.Card(c, asOf).Status)
	})

	t.Run("old unpaid declaration outside the audit window", func(t *testing.T) {
		c := base.Clone()
		c.Declarations = []clients.Declaration{
			{Period: "2023-11", Status: clients.StatusPendiente},
			{Period: "2024-02", Status: clients.StatusPagada, PaidAt: &paidAt},
			{Period: "2024-03", Status: clients.StatusPagada, PaidAt: &paidAt},
		}
		card := e.Card(c, asOf)
		require.Equal(t, obligations.StatusVencida, card.Status)
		require.Equal(t, []string{"2023-11"}, card.Overdue)

		res := e.Reconcile([]clients.Client{c}, asOf, "")
		require.Equal(t, []string{"c1-2023-11"}, keys(res.Receivable))
	})

	t.Run("earlier period owed but not late", func(t *testing.T) {
		early := day(2024, time.March, 5)
		c := base.Clone()
		c.Declarations = []clients.Declaration{
			{Period: "2024-02", Status: clients.StatusEnviada},
			{Period: "2024-03", Status: clients.StatusPagada, PaidAt: &early},
		}
		card := e.Card(c, early)
		require.Empty(t, card.Overdue)
		require.Equal(t, obligations.StatusPendiente, card.Status)
	})

	t.Run("unknown due date never escalates", func(t *testing.T) {
		c := base.Clone()
		c.RUC = ""
		card := e.Card(c, asOf)
		require.Equal(t, obligations.StatusPendiente, card.Status)
		require.Nil(t, card.DueDate)
	})

	t.Run("inactive", func(t *testing.T) {
		c := base.Clone()
		c.Deleted = true
		require.Equal(t, obligations.StatusInactiva, e.Card(c, asOf).Status)
	})
}
