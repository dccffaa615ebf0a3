package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/odyssey-erp/obligations/internal/receipt"
	"github.com/odyssey-erp/obligations/jobs"
)

// OverdueScanner computes overdue summaries.
type OverdueScanner interface {
	Scan(ctx context.Context, asOf time.Time, minDays int) ([]jobs.OverdueSummary, error)
}

// OverdueOptions defines available flags for the overdue command.
type OverdueOptions struct {
	AsOf       string
	MinDays    int
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// OverdueReport is the JSON response of the overdue command.
type OverdueReport struct {
	AsOf  string            `json:"as_of"`
	OK    bool              `json:"ok"`
	Types []OverdueTypeLine `json:"types"`
}

// OverdueTypeLine reports the overdue lines of one obligation type.
type OverdueTypeLine struct {
	Type    string   `json:"type"`
	Lines   int      `json:"lines"`
	Amount  string   `json:"amount"`
	Clients []string `json:"clients"`
}

// OverdueCommand prints overdue obligations. It exits 10 when any line is
// overdue so scripts can alert on it.
func OverdueCommand(ctx context.Context, scanner OverdueScanner, now time.Time, opts OverdueOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	asOf := now
	if raw := strings.TrimSpace(opts.AsOf); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "overdue: invalid as-of %q (expected YYYY-MM-DD)\n", opts.AsOf)
			return 1
		}
		asOf = parsed
	}
	if opts.MinDays < 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "overdue: --min-days must not be negative")
		return 1
	}
	summaries, err := scanner.Scan(ctx, asOf, opts.MinDays)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "overdue: %v\n", err)
		return 1
	}
	report := buildOverdueReport(asOf, summaries)
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(report); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "overdue: encode json: %v\n", err)
			return 1
		}
	} else {
		renderOverdueHuman(opts.Stdout, report, summaries)
	}
	if !report.OK {
		return 10
	}
	return 0
}

func buildOverdueReport(asOf time.Time, summaries []jobs.OverdueSummary) OverdueReport {
	report := OverdueReport{AsOf: asOf.Format("2006-01-02"), OK: true, Types: make([]OverdueTypeLine, 0, len(summaries))}
	for _, s := range summaries {
		clients := s.Clients
		if clients == nil {
			clients = []string{}
		}
		report.Types = append(report.Types, OverdueTypeLine{
			Type:    string(s.Type),
			Lines:   s.Lines,
			Amount:  s.Amount.StringFixed(2),
			Clients: clients,
		})
		if s.Lines > 0 {
			report.OK = false
		}
	}
	return report
}

func renderOverdueHuman(out io.Writer, report OverdueReport, summaries []jobs.OverdueSummary) {
	_, _ = fmt.Fprintf(out, "Overdue obligations as of %s\n", report.AsOf)
	if report.OK {
		_, _ = fmt.Fprintln(out, "Nothing overdue.")
		return
	}
	for _, s := range summaries {
		if s.Lines == 0 {
			continue
		}
		_, _ = fmt.Fprintf(out, " - %s: %d line(s), %s (%s)\n",
			s.Type, s.Lines, receipt.FormatAmount(s.Amount), strings.Join(s.Clients, ", "))
	}
}
