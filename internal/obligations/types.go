// Package obligations classifies clients into filing cadences and resolves
// their periods and due dates.
package obligations

import (
	"strings"

	"github.com/odyssey-erp/obligations/internal/clients"
)

// Type is the cadence/category of a filing obligation.
type Type string

const (
	Mensual    Type = "mensual"
	Semestral  Type = "semestral"
	RentaAnual Type = "renta"
	Devolucion Type = "dev"
)

// Types lists every obligation type in a stable order.
var Types = []Type{Mensual, Semestral, RentaAnual, Devolucion}

// ParseType maps a wire value to a Type. Empty and "all" yield ok with an
// empty Type, meaning no filter.
func ParseType(raw string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all", "todos":
		return "", true
	case string(Mensual):
		return Mensual, true
	case string(Semestral):
		return Semestral, true
	case string(RentaAnual):
		return RentaAnual, true
	case string(Devolucion):
		return Devolucion, true
	}
	return "", false
}

// Monthly reports whether the type is declared every month.
func (t Type) Monthly() bool {
	return t == Mensual || t == Devolucion
}

// TypeOf infers the obligation type from category and regime.
func TypeOf(c clients.Client) Type {
	switch {
	case strings.Contains(c.Category, "Semestral") || c.Regime == clients.RegimeRimpeEmprendedor:
		return Semestral
	case c.Regime == clients.RegimeRimpeNegocioPopular:
		return RentaAnual
	case strings.Contains(c.Category, "Devolución"):
		return Devolucion
	default:
		return Mensual
	}
}

// Filter restricts a ledger to one obligation type. The zero value matches
// everything; a renta filter also admits refund obligations.
type Filter Type

// Matches reports whether t passes the filter.
func (f Filter) Matches(t Type) bool {
	switch Type(f) {
	case "":
		return true
	case RentaAnual:
		return t == RentaAnual || t == Devolucion
	default:
		return Type(f) == t
	}
}

// String renders the filter for cache keys and logs.
func (f Filter) String() string {
	if f == "" {
		return "all"
	}
	return string(f)
}
