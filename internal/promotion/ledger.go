package promotion

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger reads redemption counters from PostgreSQL. Counter increments are
// not performed here: the quote apply transaction inserts the redemption row
// so over-redemption cannot happen under concurrent applies.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger constructs Ledger.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Redemptions returns the global and per-client redemption counts for a code.
func (l *Ledger) Redemptions(ctx context.Context, codeID, clientID int64) (total, byClient int64, err error) {
	err = l.pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE client_id = $2)
		FROM promotion_redemptions WHERE promotion_code_id = $1`, codeID, clientID).Scan(&total, &byClient)
	return total, byClient, err
}
