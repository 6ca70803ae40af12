package promotion

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound indicates a missing promotion.
var ErrNotFound = errors.New("promotion not found")

// Repository reads the promotion catalog from PostgreSQL. The engine treats
// the catalog as read-only; catalog CRUD belongs to the back office.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const promotionColumns = `id, name, COALESCE(description, ''), type, apply_scope,
	priority, is_exclusive, is_active, stop_further_processing,
	starts_at, ends_at, days_of_week, min_subtotal, min_quantity,
	created_at, updated_at`

// Active returns every enabled promotion with its actions, codes and
// targets. Validity-window and weekday filtering stay in the engine so the
// result is cacheable independently of the evaluation instant.
func (r *Repository) Active(ctx context.Context, _ time.Time) ([]Promotion, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE is_active ORDER BY priority DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	promos, err := scanPromotions(rows)
	if err != nil {
		return nil, err
	}
	if len(promos) == 0 {
		return nil, nil
	}
	if err := r.loadChildren(ctx, promos); err != nil {
		return nil, err
	}
	return promos, nil
}

// List returns a page of the catalog for back-office display, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Promotion, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM promotions`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+promotionColumns+` FROM promotions ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	promos, err := scanPromotions(rows)
	if err != nil {
		return nil, 0, err
	}
	if len(promos) > 0 {
		if err := r.loadChildren(ctx, promos); err != nil {
			return nil, 0, err
		}
	}
	return promos, total, nil
}

// Get returns one promotion with children.
func (r *Repository) Get(ctx context.Context, id int64) (*Promotion, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	promos, err := scanPromotions(rows)
	if err != nil {
		return nil, err
	}
	if len(promos) == 0 {
		return nil, ErrNotFound
	}
	if err := r.loadChildren(ctx, promos); err != nil {
		return nil, err
	}
	return &promos[0], nil
}

// loadChildren attaches actions, codes and targets to the given promotions.
// The three child tables are fetched concurrently.
func (r *Repository) loadChildren(ctx context.Context, promos []Promotion) error {
	ids := make([]int64, len(promos))
	index := make(map[int64]*Promotion, len(promos))
	for i := range promos {
		ids[i] = promos[i].ID
		index[promos[i].ID] = &promos[i]
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `SELECT id, promotion_id, action_type, value, max_discount_amount, buy_quantity, get_quantity
			FROM promotion_actions WHERE promotion_id = ANY($1) ORDER BY id`, ids)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var a Action
			var maxDiscount pgtype.Numeric
			if err := rows.Scan(&a.ID, &a.PromotionID, &a.Type, &a.Value, &maxDiscount, &a.BuyQuantity, &a.GetQuantity); err != nil {
				return err
			}
			a.MaxDiscountAmount = numericPtr(maxDiscount)
			if p, ok := index[a.PromotionID]; ok {
				p.Actions = append(p.Actions, a)
			}
		}
		return rows.Err()
	})

	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `SELECT id, promotion_id, code, max_redemptions, max_per_client, is_active
			FROM promotion_codes WHERE promotion_id = ANY($1) ORDER BY id`, ids)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c Code
			if err := rows.Scan(&c.ID, &c.PromotionID, &c.Code, &c.MaxRedemptions, &c.MaxPerClient, &c.IsActive); err != nil {
				return err
			}
			if p, ok := index[c.PromotionID]; ok {
				p.Codes = append(p.Codes, c)
			}
		}
		return rows.Err()
	})

	g.Go(func() error {
		rows, err := r.pool.Query(gctx, `SELECT promotion_id, category_id, product_id
			FROM promotion_targets WHERE promotion_id = ANY($1)`, ids)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var promotionID int64
			var categoryID, productID *int64
			if err := rows.Scan(&promotionID, &categoryID, &productID); err != nil {
				return err
			}
			p, ok := index[promotionID]
			if !ok {
				continue
			}
			if categoryID != nil {
				p.TargetCategoryIDs = append(p.TargetCategoryIDs, *categoryID)
			}
			if productID != nil {
				p.TargetProductIDs = append(p.TargetProductIDs, *productID)
			}
		}
		return rows.Err()
	})

	return g.Wait()
}

func scanPromotions(rows pgx.Rows) ([]Promotion, error) {
	defer rows.Close()
	var promos []Promotion
	for rows.Next() {
		var p Promotion
		var daysOfWeek int16
		var minSubtotal pgtype.Numeric
		err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Kind, &p.ApplyScope,
			&p.Priority, &p.IsExclusive, &p.IsActive, &p.StopFurtherProcessing,
			&p.StartsAt, &p.EndsAt, &daysOfWeek, &minSubtotal, &p.MinQuantity,
			&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		p.DaysOfWeek = uint8(daysOfWeek)
		p.MinSubtotal = numericPtr(minSubtotal)
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

func numericPtr(n pgtype.Numeric) *decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return nil
	}
	d := decimal.NewFromBigInt(n.Int, n.Exp)
	return &d
}
