package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/EZERROUK/x-panel-sub000/internal/platform/db"
	"github.com/EZERROUK/x-panel-sub000/internal/promotion"
)

// ErrNotFound indicates a missing quote.
var ErrNotFound = errors.New("quote not found")

// Repository persists quotes in PostgreSQL.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Quote, error)
	List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error)
	Create(ctx context.Context, quote Quote) (int64, error)
	UpdateHeader(ctx context.Context, id int64, updates map[string]interface{}) error
	UpdateStatus(ctx context.Context, id int64, status QuoteStatus) error
	InsertLine(ctx context.Context, line QuoteLine) (int64, error)
	DeleteLines(ctx context.Context, quoteID int64) error
	SetDiscountSnapshot(ctx context.Context, id int64, result promotion.DiscountResult, code string) error
	SetLineDiscount(ctx context.Context, quoteID int64, lineOrder int, amount decimal.Decimal) error
	ReplaceRedemptions(ctx context.Context, quoteID, clientID int64, codeIDs []int64) error
	GenerateNumber(ctx context.Context, date time.Time) (string, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

// WithTx runs fn with a repository bound to a repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const quoteColumns = `id, quote_number, client_id, currency_code, status,
	subtotal, tax_total, grand_total, discount_total, grand_total_after,
	COALESCE(promo_code, ''), applied_promotions, notes, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Quote, error) {
	row := r.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id)
	q, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT id, quote_id, product_id, quantity, unit_price_ht, tax_rate,
		line_total_ht, tax_amount, line_total_ttc, discount_amount, line_order
		FROM quote_lines WHERE quote_id = $1 ORDER BY line_order ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l QuoteLine
		err := rows.Scan(&l.ID, &l.QuoteID, &l.ProductID, &l.Quantity, &l.UnitPriceHT, &l.TaxRate,
			&l.LineTotalHT, &l.TaxAmount, &l.LineTotalTTC, &l.DiscountAmount, &l.LineOrder)
		if err != nil {
			return nil, err
		}
		q.Lines = append(q.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *repository) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	conditions := "WHERE 1=1"
	args := []interface{}{}
	argPos := 0

	if req.ClientID != nil {
		argPos++
		conditions += fmt.Sprintf(" AND client_id = $%d", argPos)
		args = append(args, *req.ClientID)
	}
	if req.Status != nil {
		argPos++
		conditions += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, *req.Status)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM quotes `+conditions, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM quotes %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		quoteColumns, conditions, argPos+1, argPos+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		quotes = append(quotes, *q)
	}
	return quotes, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, quote Quote) (int64, error) {
	applied, err := marshalApplied(quote.AppliedPromotions)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.db.QueryRow(ctx, `INSERT INTO quotes
		(quote_number, client_id, currency_code, status, subtotal, tax_total, grand_total,
		 discount_total, grand_total_after, promo_code, applied_promotions, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,''),$11,$12,NOW(),NOW())
		RETURNING id`,
		quote.QuoteNumber, quote.ClientID, quote.CurrencyCode, quote.Status,
		quote.Subtotal, quote.TaxTotal, quote.GrandTotal,
		quote.DiscountTotal, quote.GrandTotalAfter, quote.PromoCode, applied, quote.Notes,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) UpdateHeader(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	query := `UPDATE quotes SET updated_at = NOW()`
	args := []interface{}{}
	argPos := 0
	for _, col := range []string{"currency_code", "notes", "promo_code", "subtotal", "tax_total", "grand_total", "discount_total", "grand_total_after", "applied_promotions"} {
		if val, ok := updates[col]; ok {
			argPos++
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, val)
		}
	}
	argPos++
	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status QuoteStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) InsertLine(ctx context.Context, line QuoteLine) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO quote_lines
		(quote_id, product_id, quantity, unit_price_ht, tax_rate,
		 line_total_ht, tax_amount, line_total_ttc, discount_amount, line_order)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id`,
		line.QuoteID, line.ProductID, line.Quantity, line.UnitPriceHT, line.TaxRate,
		line.LineTotalHT, line.TaxAmount, line.LineTotalTTC, line.DiscountAmount, line.LineOrder,
	).Scan(&id)
	return id, err
}

func (r *repository) DeleteLines(ctx context.Context, quoteID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM quote_lines WHERE quote_id = $1`, quoteID)
	return err
}

// SetDiscountSnapshot overwrites the quote's discount columns with the
// result of one evaluation.
func (r *repository) SetDiscountSnapshot(ctx context.Context, id int64, result promotion.DiscountResult, code string) error {
	applied, err := marshalApplied(result.AppliedPromotions)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET
		discount_total = $2, grand_total_after = $3, applied_promotions = $4,
		promo_code = NULLIF($5, ''), updated_at = NOW()
		WHERE id = $1`,
		id, result.DiscountTotal, result.GrandTotalAfter, applied, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetLineDiscount(ctx context.Context, quoteID int64, lineOrder int, amount decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `UPDATE quote_lines SET discount_amount = $3 WHERE quote_id = $1 AND line_order = $2`,
		quoteID, lineOrder, amount)
	return err
}

// ReplaceRedemptions rewrites the quote's redemption rows to match the
// current applied set. Running inside the apply transaction keeps the
// counters atomic with the quote write.
func (r *repository) ReplaceRedemptions(ctx context.Context, quoteID, clientID int64, codeIDs []int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM promotion_redemptions WHERE quote_id = $1`, quoteID); err != nil {
		return err
	}
	for _, codeID := range codeIDs {
		_, err := r.db.Exec(ctx, `INSERT INTO promotion_redemptions (promotion_code_id, client_id, quote_id, created_at)
			VALUES ($1, $2, $3, NOW())`, codeID, clientID, quoteID)
		if err != nil {
			return err
		}
	}
	return nil
}

// GenerateNumber produces the next quote number for the month, Q-YYYYMM-NNNN.
func (r *repository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	prefix := fmt.Sprintf("Q-%s-", date.Format("200601"))
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM quotes WHERE quote_number LIKE $1`, prefix+"%").Scan(&count)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	var applied []byte
	err := row.Scan(&q.ID, &q.QuoteNumber, &q.ClientID, &q.CurrencyCode, &q.Status,
		&q.Subtotal, &q.TaxTotal, &q.GrandTotal, &q.DiscountTotal, &q.GrandTotalAfter,
		&q.PromoCode, &applied, &q.Notes, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(applied) > 0 {
		if err := json.Unmarshal(applied, &q.AppliedPromotions); err != nil {
			return nil, fmt.Errorf("decode applied promotions: %w", err)
		}
	}
	return &q, nil
}

func marshalApplied(applied []promotion.AppliedPromotion) ([]byte, error) {
	if applied == nil {
		applied = []promotion.AppliedPromotion{}
	}
	data, err := json.Marshal(applied)
	if err != nil {
		return nil, fmt.Errorf("encode applied promotions: %w", err)
	}
	return data, nil
}
