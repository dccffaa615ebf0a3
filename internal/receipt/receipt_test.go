package receipt

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/obligations/internal/settlement"
)

func sampleSummary(clientID string) settlement.Summary {
	return settlement.Summary{
		TransactionID: "TX-1A2B3C4D",
		ClientID:      clientID,
		ClientName:    "Ñandú Importaciones",
		ClientRUC:     "1790012310001",
		PaymentDate:   time.Date(2024, time.March, 20, 10, 0, 0, 0, time.UTC),
		PaidPeriods: []settlement.PaidPeriod{
			{ClientID: clientID, Period: "2024-02", Label: "Febrero 2024", Amount: decimal.RequireFromString("25.5")},
			{ClientID: clientID, Period: "2024-03", Label: "Marzo 2024", Amount: decimal.RequireFromString("20")},
		},
		TotalAmount: decimal.RequireFromString("45.5"),
	}
}

func TestFormatAmount(t *testing.T) {
	got := FormatAmount(decimal.RequireFromString("25.5"))
	require.Equal(t, "$25,50", got)
}

func TestFormatDate(t *testing.T) {
	require.Equal(t, "05/03/2024", FormatDate(time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)))
}

func TestBuildPDF(t *testing.T) {
	out, err := BuildPDF(sampleSummary("C1"))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestArchiveRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	archive := NewArchive(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, archive.Save(ctx, "TX-1A2B3C4D", []settlement.Summary{sampleSummary("C1"), sampleSummary("C2")}))
	require.True(t, srv.Exists("receipt:TX-1A2B3C4D"))
	require.Equal(t, time.Hour, srv.TTL("receipt:TX-1A2B3C4D"))

	all, err := archive.Load(ctx, "TX-1A2B3C4D")
	require.NoError(t, err)
	require.Len(t, all, 2)

	c2, err := archive.Find(ctx, "TX-1A2B3C4D", "C2")
	require.NoError(t, err)
	require.Equal(t, "C2", c2.ClientID)
	require.True(t, c2.TotalAmount.Equal(decimal.RequireFromString("45.5")))

	_, err = archive.Find(ctx, "TX-1A2B3C4D", "")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = archive.Find(ctx, "TX-1A2B3C4D", "C9")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = archive.Load(ctx, "TX-MISSING")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveSingleClientDefault(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	archive := NewArchive(client, 0)
	ctx := context.Background()

	require.NoError(t, archive.Save(ctx, "TX-1", []settlement.Summary{sampleSummary("C1")}))
	got, err := archive.Find(ctx, "TX-1", "")
	require.NoError(t, err)
	require.Equal(t, "C1", got.ClientID)
}

func TestArchiveDisabled(t *testing.T) {
	var archive *Archive
	require.NoError(t, archive.Save(context.Background(), "TX-1", nil))
	_, err := archive.Load(context.Background(), "TX-1")
	require.ErrorIs(t, err, ErrNotFound)
}
