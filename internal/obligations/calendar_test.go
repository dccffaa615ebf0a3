package obligations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/obligations/internal/clients"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTypeOf(t *testing.T) {
	cases := []struct {
		name   string
		client clients.Client
		want   Type
	}{
		{"semestral category", clients.Client{Category: "IVA Semestral"}, Semestral},
		{"rimpe emprendedor", clients.Client{Category: "Mensual", Regime: clients.RegimeRimpeEmprendedor}, Semestral},
		{"negocio popular", clients.Client{Category: "Mensual", Regime: clients.RegimeRimpeNegocioPopular}, RentaAnual},
		{"refund", clients.Client{Category: "Devolución IVA"}, Devolucion},
		{"default", clients.Client{Category: "Mensual", Regime: clients.RegimeGeneral}, Mensual},
		{"semestral wins over popular", clients.Client{Category: "Semestral", Regime: clients.RegimeRimpeNegocioPopular}, Semestral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, TypeOf(tc.client))
		})
	}
}

func TestFilterMatches(t *testing.T) {
	require.True(t, Filter("").Matches(Semestral))
	require.True(t, Filter(RentaAnual).Matches(Devolucion))
	require.True(t, Filter(RentaAnual).Matches(RentaAnual))
	require.False(t, Filter(RentaAnual).Matches(Mensual))
	require.False(t, Filter(Devolucion).Matches(RentaAnual))
	require.True(t, Filter(Mensual).Matches(Mensual))
}

func TestParseType(t *testing.T) {
	typ, ok := ParseType("RENTA")
	require.True(t, ok)
	require.Equal(t, RentaAnual, typ)

	typ, ok = ParseType("all")
	require.True(t, ok)
	require.Empty(t, typ)

	_, ok = ParseType("weekly")
	require.False(t, ok)
}

func TestSRICalendarPeriod(t *testing.T) {
	cal := NewSRICalendar()
	asOf := date(2024, time.August, 3)

	require.Equal(t, "2024-08", cal.Period(clients.Client{Category: "Mensual"}, asOf))
	require.Equal(t, "2024-S2", cal.Period(clients.Client{Category: "Semestral"}, asOf))
	require.Equal(t, "2024-S1", cal.Period(clients.Client{Category: "Semestral"}, date(2024, time.June, 30)))
	require.Equal(t, "2024", cal.Period(clients.Client{Regime: clients.RegimeRimpeNegocioPopular}, asOf))
}

func TestSRICalendarDueDate(t *testing.T) {
	cal := NewSRICalendar()
	c := clients.Client{RUC: "1790012310001"} // ninth digit 1 -> day 10

	due, ok := cal.DueDate(c, "2024-02")
	require.True(t, ok)
	require.Equal(t, date(2024, time.March, 10), due)

	due, ok = cal.DueDate(c, "2024-12")
	require.True(t, ok)
	require.Equal(t, date(2025, time.January, 10), due)

	due, ok = cal.DueDate(c, "2024-S1")
	require.True(t, ok)
	require.Equal(t, date(2024, time.July, 10), due)

	due, ok = cal.DueDate(c, "2024-S2")
	require.True(t, ok)
	require.Equal(t, date(2025, time.January, 10), due)

	due, ok = cal.DueDate(c, "2024")
	require.True(t, ok)
	require.Equal(t, date(2025, time.May, 10), due)

	due, ok = cal.DueDate(clients.Client{RUC: "0912345600001"}, "2024-02") // ninth digit 0 -> day 28
	require.True(t, ok)
	require.Equal(t, 28, due.Day())
}

func TestSRICalendarDueDateUnknown(t *testing.T) {
	cal := NewSRICalendar()
	_, ok := cal.DueDate(clients.Client{RUC: "123"}, "2024-02")
	require.False(t, ok)
	_, ok = cal.DueDate(clients.Client{RUC: "17900123X1001"}, "2024-02")
	require.False(t, ok)
	_, ok = cal.DueDate(clients.Client{RUC: "1790012310001"}, "febrero")
	require.False(t, ok)
}

func TestSRICalendarLabel(t *testing.T) {
	cal := NewSRICalendar()
	require.Equal(t, "Marzo 2024", cal.Label("2024-03"))
	require.Equal(t, "1er Semestre 2024", cal.Label("2024-S1"))
	require.Equal(t, "2do Semestre 2023", cal.Label("2023-S2"))
	require.Equal(t, "Año Fiscal 2024", cal.Label("2024"))
	require.Equal(t, "???", cal.Label("???"))
}

func TestAuditPeriods(t *testing.T) {
	cal := NewSRICalendar()
	monthly := clients.Client{Category: "Mensual"}
	require.Equal(t, []string{"2024-03", "2024-02"}, AuditPeriods(cal, monthly, Mensual, date(2024, time.March, 31)))
	require.Equal(t, []string{"2024-01", "2023-12"}, AuditPeriods(cal, monthly, Devolucion, date(2024, time.January, 15)))

	semi := clients.Client{Category: "Semestral"}
	require.Equal(t, []string{"2024-S1"}, AuditPeriods(cal, semi, Semestral, date(2024, time.March, 31)))
}

func TestDaysBetween(t *testing.T) {
	asOf := time.Date(2024, time.March, 20, 23, 59, 0, 0, time.UTC)
	require.Equal(t, 10, DaysBetween(asOf, date(2024, time.March, 10)))
	require.Equal(t, -21, DaysBetween(asOf, date(2024, time.April, 10)))
	require.Equal(t, 0, DaysBetween(asOf, asOf))
}
