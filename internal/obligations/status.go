package obligations

import "time"

// Status is the portfolio card indicator for a client.
type Status string

const (
	StatusPagada    Status = "pagada"
	StatusEnviada   Status = "enviada"
	StatusPendiente Status = "pendiente"
	StatusVencida   Status = "vencida"
	StatusInactiva  Status = "inactiva"
)

// Card summarises where a client stands on its active period.
type Card struct {
	ClientID string     `json:"clientId"`
	Type     Type       `json:"obligationType"`
	Period   string     `json:"period"`
	Label    string     `json:"label"`
	Status   Status     `json:"status"`
	DueDate  *time.Time `json:"dueDate,omitempty"`
	// Overdue lists periods with a receivable line past its deadline.
	Overdue []string `json:"overdue,omitempty"`
}
