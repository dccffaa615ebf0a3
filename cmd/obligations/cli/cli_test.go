package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/obligations/internal/obligations"
	"github.com/odyssey-erp/obligations/jobs"
)

type stubScanner struct {
	summaries []jobs.OverdueSummary
	err       error
	asOf      time.Time
	minDays   int
}

func (s *stubScanner) Scan(_ context.Context, asOf time.Time, minDays int) ([]jobs.OverdueSummary, error) {
	s.asOf, s.minDays = asOf, minDays
	return s.summaries, s.err
}

var now = time.Date(2024, time.March, 20, 9, 0, 0, 0, time.UTC)

func TestOverdueCommandJSON(t *testing.T) {
	scanner := &stubScanner{summaries: []jobs.OverdueSummary{
		{Type: obligations.Mensual, Lines: 2, Amount: decimal.RequireFromString("45.5"), Clients: []string{"C2", "C1"}},
		{Type: obligations.Semestral, Amount: decimal.Zero},
	}}
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := OverdueCommand(context.Background(), scanner, now, OverdueOptions{
		AsOf: "2024-03-01", MinDays: 5, JSONOutput: true, Stdout: stdout, Stderr: stderr,
	})
	require.Equal(t, 10, code)
	require.Empty(t, stderr.String())
	require.Equal(t, "2024-03-01", scanner.asOf.Format("2006-01-02"))
	require.Equal(t, 5, scanner.minDays)

	var report OverdueReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	require.False(t, report.OK)
	require.Len(t, report.Types, 2)
	require.Equal(t, "45.50", report.Types[0].Amount)
	require.Equal(t, []string{"C2", "C1"}, report.Types[0].Clients)
	require.Empty(t, report.Types[1].Clients)
}

func TestOverdueCommandHuman(t *testing.T) {
	scanner := &stubScanner{summaries: []jobs.OverdueSummary{
		{Type: obligations.Mensual, Lines: 1, Amount: decimal.RequireFromString("25.5"), Clients: []string{"C1"}},
	}}
	stdout := new(bytes.Buffer)
	code := OverdueCommand(context.Background(), scanner, now, OverdueOptions{Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 10, code)
	require.Equal(t, now, scanner.asOf)
	require.Contains(t, stdout.String(), "as of 2024-03-20")
	require.Contains(t, stdout.String(), "mensual: 1 line(s), $25,50 (C1)")
}

func TestOverdueCommandClean(t *testing.T) {
	scanner := &stubScanner{summaries: []jobs.OverdueSummary{{Type: obligations.Mensual, Amount: decimal.Zero}}}
	stdout := new(bytes.Buffer)
	require.Zero(t, OverdueCommand(context.Background(), scanner, now, OverdueOptions{Stdout: stdout}))
	require.Contains(t, stdout.String(), "Nothing overdue.")
}

func TestOverdueCommandErrors(t *testing.T) {
	stderr := new(bytes.Buffer)
	require.Equal(t, 1, OverdueCommand(context.Background(), &stubScanner{}, now, OverdueOptions{AsOf: "20/03/2024", Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "invalid as-of")

	stderr.Reset()
	require.Equal(t, 1, OverdueCommand(context.Background(), &stubScanner{}, now, OverdueOptions{MinDays: -1, Stdout: new(bytes.Buffer), Stderr: stderr}))

	stderr.Reset()
	failing := &stubScanner{err: errors.New("store offline")}
	require.Equal(t, 1, OverdueCommand(context.Background(), failing, now, OverdueOptions{Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "store offline")
}

func TestJobsCLITrigger(t *testing.T) {
	srv := miniredis.RunT(t)
	jc := NewJobsCLI(srv.Addr())
	t.Cleanup(func() { _ = jc.Close() })

	info, err := jc.Trigger(context.Background(), jobs.TaskLedgerWarmup, TriggerParams{AsOf: now, Types: []string{"mensual"}})
	require.NoError(t, err)
	require.Equal(t, jobs.TaskLedgerWarmup, info.Type)
	require.JSONEq(t, `{"as_of":"2024-03-20","types":["mensual"]}`, string(info.Payload))

	info, err = jc.Trigger(context.Background(), jobs.TaskOverdueScan, TriggerParams{MinDays: 3})
	require.NoError(t, err)
	require.JSONEq(t, `{"min_days":3}`, string(info.Payload))

	_, err = jc.Trigger(context.Background(), "ledger:unknown", TriggerParams{})
	require.ErrorContains(t, err, "unsupported job")
}
