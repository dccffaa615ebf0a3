package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/obligations/internal/settlement"
)

// ErrNotFound indicates no receipt is archived for the lookup.
var ErrNotFound = errors.New("receipt: not found")

const keyPrefix = "receipt:"

// Archive keeps the receipts of recent batches in Redis.
type Archive struct {
	client *redis.Client
	ttl    time.Duration
}

// NewArchive builds an archive. A zero ttl keeps receipts forever.
func NewArchive(client *redis.Client, ttl time.Duration) *Archive {
	return &Archive{client: client, ttl: ttl}
}

// Save stores every receipt of a batch under the transaction id.
func (a *Archive) Save(ctx context.Context, txID string, receipts []settlement.Summary) error {
	if a == nil || a.client == nil {
		return nil
	}
	payload, err := json.Marshal(receipts)
	if err != nil {
		return fmt.Errorf("receipt: encode: %w", err)
	}
	if err := a.client.Set(ctx, keyPrefix+txID, payload, a.ttl).Err(); err != nil {
		return fmt.Errorf("receipt: save %s: %w", txID, err)
	}
	return nil
}

// Load returns every receipt archived for a transaction.
func (a *Archive) Load(ctx context.Context, txID string) ([]settlement.Summary, error) {
	if a == nil || a.client == nil {
		return nil, ErrNotFound
	}
	payload, err := a.client.Get(ctx, keyPrefix+txID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("receipt: load %s: %w", txID, err)
	}
	var receipts []settlement.Summary
	if err := json.Unmarshal(payload, &receipts); err != nil {
		return nil, fmt.Errorf("receipt: decode %s: %w", txID, err)
	}
	return receipts, nil
}

// Find returns one client's receipt for a transaction. An empty clientID is
// accepted only when the batch touched a single client.
func (a *Archive) Find(ctx context.Context, txID, clientID string) (settlement.Summary, error) {
	receipts, err := a.Load(ctx, txID)
	if err != nil {
		return settlement.Summary{}, err
	}
	if clientID == "" {
		if len(receipts) != 1 {
			return settlement.Summary{}, ErrNotFound
		}
		return receipts[0], nil
	}
	for _, r := range receipts {
		if r.ClientID == clientID {
			return r, nil
		}
	}
	return settlement.Summary{}, ErrNotFound
}
