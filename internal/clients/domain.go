package clients

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeclarationStatus enumerates the lifecycle of a filing period.
type DeclarationStatus string

const (
	StatusPendiente DeclarationStatus = "Pendiente"
	StatusEnviada   DeclarationStatus = "Enviada"
	StatusPagada    DeclarationStatus = "Pagada"
)

// Valid reports whether the status is one of the known values.
func (s DeclarationStatus) Valid() bool {
	switch s {
	case StatusPendiente, StatusEnviada, StatusPagada:
		return true
	}
	return false
}

// Tax regimes that drive obligation cadence.
const (
	RegimeGeneral             = "General"
	RegimeRimpeEmprendedor    = "RimpeEmprendedor"
	RegimeRimpeNegocioPopular = "RimpeNegocioPopular"
)

// Declaration is one obligation period's lifecycle record.
type Declaration struct {
	Period        string            `json:"period" yaml:"period"`
	Status        DeclarationStatus `json:"status" yaml:"status"`
	UpdatedAt     time.Time         `json:"updatedAt" yaml:"updatedAt"`
	DeclaredAt    *time.Time        `json:"declaredAt,omitempty" yaml:"declaredAt,omitempty"`
	PaidAt        *time.Time        `json:"paidAt,omitempty" yaml:"paidAt,omitempty"`
	TransactionID string            `json:"transactionId,omitempty" yaml:"transactionId,omitempty"`
	Amount        *decimal.Decimal  `json:"amount,omitempty" yaml:"amount,omitempty"`
}

// IsDeclared treats a paid period as declared even when DeclaredAt is missing.
func (d Declaration) IsDeclared() bool {
	return d.DeclaredAt != nil || d.Status == StatusEnviada || d.Status == StatusPagada
}

// Client is the identity and billing profile of a portfolio member.
type Client struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	TradeName    string        `json:"tradeName,omitempty" yaml:"tradeName,omitempty"`
	RUC          string        `json:"ruc" yaml:"ruc"`
	Category     string        `json:"category" yaml:"category"`
	Regime       string        `json:"regime" yaml:"regime"`
	Active       *bool         `json:"isActive,omitempty" yaml:"isActive,omitempty"`
	Deleted      bool          `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	Phones       []string      `json:"phones,omitempty" yaml:"phones,omitempty"`
	Declarations []Declaration `json:"declarationHistory" yaml:"declarationHistory"`
}

// IsActive reports whether the client takes part in reconciliation. A nil
// Active flag counts as active.
func (c Client) IsActive() bool {
	if c.Deleted {
		return false
	}
	return c.Active == nil || *c.Active
}

// DisplayName prefers the trade name over the legal name.
func (c Client) DisplayName() string {
	if c.TradeName != "" {
		return c.TradeName
	}
	return c.Name
}

// Declaration returns the record for the period, if any.
func (c Client) Declaration(period string) (Declaration, bool) {
	for _, d := range c.Declarations {
		if d.Period == period {
			return d, true
		}
	}
	return Declaration{}, false
}

// Periods returns the set of periods already present in the history.
func (c Client) Periods() map[string]struct{} {
	out := make(map[string]struct{}, len(c.Declarations))
	for _, d := range c.Declarations {
		out[d.Period] = struct{}{}
	}
	return out
}

// Upsert replaces the declaration with the same period or appends it.
func (c *Client) Upsert(decl Declaration) {
	for i := range c.Declarations {
		if c.Declarations[i].Period == decl.Period {
			c.Declarations[i] = decl
			return
		}
	}
	c.Declarations = append(c.Declarations, decl)
}

// Clone returns a deep copy so callers can mutate without aliasing the store.
func (c Client) Clone() Client {
	out := c
	if c.Active != nil {
		active := *c.Active
		out.Active = &active
	}
	if c.Phones != nil {
		out.Phones = append([]string(nil), c.Phones...)
	}
	if c.Declarations != nil {
		out.Declarations = make([]Declaration, len(c.Declarations))
		for i, d := range c.Declarations {
			out.Declarations[i] = d.clone()
		}
	}
	return out
}

func (d Declaration) clone() Declaration {
	out := d
	if d.DeclaredAt != nil {
		t := *d.DeclaredAt
		out.DeclaredAt = &t
	}
	if d.PaidAt != nil {
		t := *d.PaidAt
		out.PaidAt = &t
	}
	if d.Amount != nil {
		a := *d.Amount
		out.Amount = &a
	}
	return out
}

// CloneAll deep-copies a client collection.
func CloneAll(list []Client) []Client {
	if list == nil {
		return nil
	}
	out := make([]Client, len(list))
	for i, c := range list {
		out[i] = c.Clone()
	}
	return out
}
