package obligations

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/obligations/internal/clients"
)

// Calendar resolves filing periods, due dates and labels.
type Calendar interface {
	// Period returns the period of c that contains asOf.
	Period(c clients.Client, asOf time.Time) string
	// DueDate returns the filing deadline, or false when it cannot be known.
	DueDate(c clients.Client, period string) (time.Time, bool)
	// Label renders a period for people.
	Label(period string) string
}

// dueDays maps the ninth RUC digit to the filing day of the month.
var dueDays = map[byte]int{
	'1': 10, '2': 12, '3': 14, '4': 16, '5': 18,
	'6': 20, '7': 22, '8': 24, '9': 26, '0': 28,
}

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// SRICalendar follows the SRI deadline schedule keyed on the ninth RUC digit.
// Monthly periods fall due the following month, first semesters in July,
// second semesters the next January and annual income tax the next May.
type SRICalendar struct {
	// AnnualDueMonth overrides the month annual periods fall due. Zero means May.
	AnnualDueMonth time.Month
}

// NewSRICalendar returns the default calendar.
func NewSRICalendar() SRICalendar {
	return SRICalendar{AnnualDueMonth: time.May}
}

// Period implements Calendar.
func (c SRICalendar) Period(client clients.Client, asOf time.Time) string {
	switch TypeOf(client) {
	case Semestral:
		half := 1
		if asOf.Month() > time.June {
			half = 2
		}
		return fmt.Sprintf("%04d-S%d", asOf.Year(), half)
	case RentaAnual:
		return fmt.Sprintf("%04d", asOf.Year())
	default:
		return asOf.Format("2006-01")
	}
}

// DueDate implements Calendar.
func (c SRICalendar) DueDate(client clients.Client, period string) (time.Time, bool) {
	day, ok := dueDay(client.RUC)
	if !ok {
		return time.Time{}, false
	}
	p, ok := ParsePeriod(period)
	if !ok {
		return time.Time{}, false
	}
	switch p.Kind {
	case KindMonth:
		return time.Date(p.Year, p.Month+1, day, 0, 0, 0, 0, time.UTC), true
	case KindSemester:
		if p.Half == 1 {
			return time.Date(p.Year, time.July, day, 0, 0, 0, 0, time.UTC), true
		}
		return time.Date(p.Year+1, time.January, day, 0, 0, 0, 0, time.UTC), true
	case KindYear:
		month := c.AnnualDueMonth
		if month == 0 {
			month = time.May
		}
		return time.Date(p.Year+1, month, day, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// Label implements Calendar.
func (c SRICalendar) Label(period string) string {
	p, ok := ParsePeriod(period)
	if !ok {
		return period
	}
	title := cases.Title(language.Spanish)
	switch p.Kind {
	case KindMonth:
		return title.String(fmt.Sprintf("%s %d", monthNames[p.Month-1], p.Year))
	case KindSemester:
		if p.Half == 1 {
			return fmt.Sprintf("1er Semestre %d", p.Year)
		}
		return fmt.Sprintf("2do Semestre %d", p.Year)
	default:
		return fmt.Sprintf("Año Fiscal %d", p.Year)
	}
}

func dueDay(ruc string) (int, bool) {
	ruc = strings.TrimSpace(ruc)
	if len(ruc) < 9 {
		return 0, false
	}
	day, ok := dueDays[ruc[8]]
	return day, ok
}

// PeriodKind distinguishes period id formats.
type PeriodKind int

const (
	KindMonth PeriodKind = iota + 1
	KindSemester
	KindYear
)

// Period is a parsed period identifier.
type Period struct {
	Kind  PeriodKind
	Year  int
	Month time.Month
	Half  int
}

// ParsePeriod accepts "2024-03", "2024-S1" and "2024".
func ParsePeriod(raw string) (Period, bool) {
	raw = strings.TrimSpace(raw)
	switch {
	case len(raw) == 4:
		year, err := strconv.Atoi(raw)
		if err != nil || year <= 0 {
			return Period{}, false
		}
		return Period{Kind: KindYear, Year: year}, true
	case len(raw) == 7 && raw[4] == '-' && (raw[5] == 'S' || raw[5] == 's'):
		year, err := strconv.Atoi(raw[:4])
		if err != nil || year <= 0 {
			return Period{}, false
		}
		switch raw[6] {
		case '1':
			return Period{Kind: KindSemester, Year: year, Half: 1}, true
		case '2':
			return Period{Kind: KindSemester, Year: year, Half: 2}, true
		}
		return Period{}, false
	case len(raw) == 7 && raw[4] == '-':
		t, err := time.Parse("2006-01", raw)
		if err != nil {
			return Period{}, false
		}
		return Period{Kind: KindMonth, Year: t.Year(), Month: t.Month()}, true
	}
	return Period{}, false
}

// AuditPeriods lists the periods that must exist for c as of asOf: the
// current and previous month for monthly cadences, only the current period
// otherwise.
func AuditPeriods(cal Calendar, c clients.Client, t Type, asOf time.Time) []string {
	current := cal.Period(c, asOf)
	if !t.Monthly() {
		return []string{current}
	}
	prevMonth := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, asOf.Location()).AddDate(0, -1, 0)
	return []string{current, cal.Period(c, prevMonth)}
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from ref to asOf. Positive means asOf is
// after ref, i.e. the deadline has passed.
func DaysBetween(asOf, ref time.Time) int {
	return int(Day(asOf).Sub(Day(ref)).Hours() / 24)
}

// SameMonth reports whether a and b fall in the same calendar month, using
// the location of b.
func SameMonth(a, b time.Time) bool {
	a = a.In(b.Location())
	return a.Year() == b.Year() && a.Month() == b.Month()
}
