package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/obligations/internal/platform/db"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore persists the portfolio in PostgreSQL. Update runs inside a
// repeatable-read transaction that locks every client row, so concurrent
// batches serialise on the same boundary as the in-memory store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Snapshot loads every client with its declaration history.
func (s *PostgresStore) Snapshot(ctx context.Context) ([]Client, error) {
	return loadAll(ctx, s.pool, false)
}

// Update applies fn to a locked snapshot and writes back the changes.
// Clients absent from the returned collection are left untouched.
func (s *PostgresStore) Update(ctx context.Context, fn TxFunc) error {
	if fn == nil {
		return errors.New("clients: update func required")
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		prev, err := loadAll(ctx, tx, true)
		if err != nil {
			return err
		}
		next, err := fn(CloneAll(prev))
		if err != nil {
			return err
		}
		byID := make(map[string]Client, len(prev))
		for _, c := range prev {
			byID[c.ID] = c
		}
		for _, c := range next {
			old, ok := byID[c.ID]
			if !ok || !sameProfile(old, c) {
				if err := upsertClient(ctx, tx, c); err != nil {
					return err
				}
			}
			for _, d := range c.Declarations {
				if ok {
					if prevDecl, found := old.Declaration(d.Period); found && sameDeclaration(prevDecl, d) {
						continue
					}
				}
				if err := upsertDeclaration(ctx, tx, c.ID, d); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Replace writes the given clients, used by the seed script.
func (s *PostgresStore) Replace(ctx context.Context, list []Client) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, c := range list {
			if err := upsertClient(ctx, tx, c); err != nil {
				return err
			}
			for _, d := range c.Declarations {
				if err := upsertDeclaration(ctx, tx, c.ID, d); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func loadAll(ctx context.Context, q querier, lock bool) ([]Client, error) {
	query := `
		SELECT id, name, trade_name, ruc, category, regime, is_active, deleted, phones
		FROM clients
		ORDER BY id`
	if lock {
		query += " FOR UPDATE"
	}
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("clients: list: %w", err)
	}
	var list []Client
	index := make(map[string]int)
	for rows.Next() {
		var c Client
		var tradeName pgtype.Text
		var active pgtype.Bool
		if err := rows.Scan(&c.ID, &c.Name, &tradeName, &c.RUC, &c.Category, &c.Regime, &active, &c.Deleted, &c.Phones); err != nil {
			rows.Close()
			return nil, fmt.Errorf("clients: scan: %w", err)
		}
		c.TradeName = tradeName.String
		if active.Valid {
			v := active.Bool
			c.Active = &v
		}
		index[c.ID] = len(list)
		list = append(list, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clients: list: %w", err)
	}

	drows, err := q.Query(ctx, `
		SELECT client_id, period, status, updated_at, declared_at, paid_at, transaction_id, amount::text
		FROM declarations
		ORDER BY client_id, period`)
	if err != nil {
		return nil, fmt.Errorf("clients: list declarations: %w", err)
	}
	defer drows.Close()
	for drows.Next() {
		var clientID string
		var d Declaration
		var declaredAt, paidAt pgtype.Timestamptz
		var txID, amount pgtype.Text
		if err := drows.Scan(&clientID, &d.Period, &d.Status, &d.UpdatedAt, &declaredAt, &paidAt, &txID, &amount); err != nil {
			return nil, fmt.Errorf("clients: scan declaration: %w", err)
		}
		if declaredAt.Valid {
			t := declaredAt.Time
			d.DeclaredAt = &t
		}
		if paidAt.Valid {
			t := paidAt.Time
			d.PaidAt = &t
		}
		d.TransactionID = txID.String
		if amount.Valid {
			v, err := decimal.NewFromString(amount.String)
			if err != nil {
				return nil, fmt.Errorf("clients: parse amount %s/%s: %w", clientID, d.Period, err)
			}
			d.Amount = &v
		}
		i, ok := index[clientID]
		if !ok {
			continue
		}
		list[i].Declarations = append(list[i].Declarations, d)
	}
	return list, drows.Err()
}

func upsertClient(ctx context.Context, q querier, c Client) error {
	var active pgtype.Bool
	if c.Active != nil {
		active = pgtype.Bool{Bool: *c.Active, Valid: true}
	}
	var tradeName pgtype.Text
	if c.TradeName != "" {
		tradeName = pgtype.Text{String: c.TradeName, Valid: true}
	}
	phones := c.Phones
	if phones == nil {
		phones = []string{}
	}
	_, err := q.Exec(ctx, `
		INSERT INTO clients (id, name, trade_name, ruc, category, regime, is_active, deleted, phones)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			trade_name = EXCLUDED.trade_name,
			ruc = EXCLUDED.ruc,
			category = EXCLUDED.category,
			regime = EXCLUDED.regime,
			is_active = EXCLUDED.is_active,
			deleted = EXCLUDED.deleted,
			phones = EXCLUDED.phones`,
		c.ID, c.Name, tradeName, c.RUC, c.Category, c.Regime, active, c.Deleted, phones,
	)
	if err != nil {
		return fmt.Errorf("clients: upsert %s: %w", c.ID, err)
	}
	return nil
}

func upsertDeclaration(ctx context.Context, q querier, clientID string, d Declaration) error {
	var declaredAt, paidAt pgtype.Timestamptz
	if d.DeclaredAt != nil {
		declaredAt = pgtype.Timestamptz{Time: *d.DeclaredAt, Valid: true}
	}
	if d.PaidAt != nil {
		paidAt = pgtype.Timestamptz{Time: *d.PaidAt, Valid: true}
	}
	var txID, amount pgtype.Text
	if d.TransactionID != "" {
		txID = pgtype.Text{String: d.TransactionID, Valid: true}
	}
	if d.Amount != nil {
		amount = pgtype.Text{String: d.Amount.String(), Valid: true}
	}
	updatedAt := d.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO declarations (client_id, period, status, updated_at, declared_at, paid_at, transaction_id, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric)
		ON CONFLICT (client_id, period) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			declared_at = EXCLUDED.declared_at,
			paid_at = EXCLUDED.paid_at,
			transaction_id = EXCLUDED.transaction_id,
			amount = EXCLUDED.amount`,
		clientID, d.Period, string(d.Status), updatedAt, declaredAt, paidAt, txID, amount,
	)
	if err != nil {
		return fmt.Errorf("clients: upsert declaration %s/%s: %w", clientID, d.Period, err)
	}
	return nil
}

func sameProfile(a, b Client) bool {
	if a.Name != b.Name || a.TradeName != b.TradeName || a.RUC != b.RUC ||
		a.Category != b.Category || a.Regime != b.Regime || a.Deleted != b.Deleted ||
		a.IsActive() != b.IsActive() || len(a.Phones) != len(b.Phones) {
		return false
	}
	for i := range a.Phones {
		if a.Phones[i] != b.Phones[i] {
			return false
		}
	}
	return true
}

func sameDeclaration(a, b Declaration) bool {
	return a.Period == b.Period &&
		a.Status == b.Status &&
		a.UpdatedAt.Equal(b.UpdatedAt) &&
		a.TransactionID == b.TransactionID &&
		sameTime(a.DeclaredAt, b.DeclaredAt) &&
		sameTime(a.PaidAt, b.PaidAt) &&
		sameAmount(a.Amount, b.Amount)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sameAmount(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
