// Package receipt renders and archives settlement receipts.
package receipt

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// FormatAmount renders a money amount with Spanish separators and a dollar
// prefix.
func FormatAmount(amount decimal.Decimal) string {
	p := message.NewPrinter(language.Spanish)
	return "$" + p.Sprint(number.Decimal(amount.Round(2).InexactFloat64(), number.Scale(2)))
}

// FormatDate renders a payment date as dd/mm/yyyy.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}
