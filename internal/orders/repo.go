package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `local_order_id, COALESCE(provider_payment_id, ''), user_id,
	amount_settlement::text, currency_settlement, status, line_items, customer_info,
	payer_info, provider_response, created_at, updated_at`

// InsertPending stores o with status PENDING. Duplicate local or provider
// ids fail with ErrAlreadyExists; o's timestamps are filled from the row.
func (r *Repo) InsertPending(ctx context.Context, o *Order) error {
	items, err := json.Marshal(o.LineItems)
	if err != nil {
		return fmt.Errorf("encode line items: %w", err)
	}
	customer, err := json.Marshal(o.CustomerInfo)
	if err != nil {
		return fmt.Errorf("encode customer info: %w", err)
	}

	err = r.DB.QueryRow(ctx, `
		INSERT INTO payment_orders(local_order_id, provider_payment_id, user_id, amount_settlement,
			currency_settlement, status, line_items, customer_info)
		VALUES ($1, $2, $3, $4::numeric, $5, 'PENDING', $6, $7)
		RETURNING created_at, updated_at`,
		o.LocalOrderID, o.ProviderPaymentID, o.UserID, o.AmountSettlement.String(),
		o.CurrencySettlement, items, customer,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, o.LocalOrderID)
		}
		return err
	}
	o.Status = StatusPending
	return nil
}

func (r *Repo) FindByProviderPaymentID(ctx context.Context, id string) (Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM payment_orders WHERE provider_payment_id=$1`, id)
}

func (r *Repo) FindByLocalID(ctx context.Context, id string) (Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM payment_orders WHERE local_order_id=$1`, id)
}

// Transition moves the order from -> to in a single conditional UPDATE.
// When the row is not in status from, the current row is returned inside a
// *PreconditionError.
func (r *Repo) Transition(ctx context.Context, providerPaymentID string, from, to Status, p Patch) (Order, error) {
	if !CanTransition(from, to) {
		return Order{}, fmt.Errorf("transition %s -> %s not allowed", from, to)
	}
	o, err := r.findOne(ctx, `
		UPDATE payment_orders
		SET status = $3,
		    payer_info = COALESCE($4, payer_info),
		    provider_response = COALESCE($5, provider_response),
		    updated_at = now()
		WHERE provider_payment_id = $1 AND status = $2
		RETURNING `+orderColumns,
		providerPaymentID, string(from), string(to), nullJSON(p.PayerInfo), nullJSON(p.ProviderResponse),
	)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Order{}, err
	}

	// tidak ada baris ter-update: bedakan "tidak ada" vs "status beda"
	cur, err := r.FindByProviderPaymentID(ctx, providerPaymentID)
	if err != nil {
		return Order{}, err
	}
	return Order{}, &PreconditionError{Expected: from, Current: cur}
}

// Snapshot resolves product refs to name/price as stored right now. Unknown
// refs are simply absent from the result.
func (r *Repo) Snapshot(ctx context.Context, refs []string) (map[string]ProductSnapshot, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, price::text FROM products WHERE id = ANY($1)`, refs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]ProductSnapshot, len(refs))
	for rows.Next() {
		var (
			p     ProductSnapshot
			price string
		)
		if err := rows.Scan(&p.ID, &p.Name, &price); err != nil {
			return nil, err
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("product %s price: %w", p.ID, err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *Repo) findOne(ctx context.Context, sql string, args ...any) (Order, error) {
	var (
		o                      Order
		amount, status         string
		items, customer        []byte
		payer, providerPayload []byte
	)
	err := r.DB.QueryRow(ctx, sql, args...).Scan(
		&o.LocalOrderID, &o.ProviderPaymentID, &o.UserID, &amount, &o.CurrencySettlement,
		&status, &items, &customer, &payer, &providerPayload, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}

	o.Status = Status(status)
	if o.AmountSettlement, err = decimal.NewFromString(amount); err != nil {
		return Order{}, fmt.Errorf("order %s amount: %w", o.LocalOrderID, err)
	}
	if err := json.Unmarshal(items, &o.LineItems); err != nil {
		return Order{}, fmt.Errorf("order %s line items: %w", o.LocalOrderID, err)
	}
	if err := json.Unmarshal(customer, &o.CustomerInfo); err != nil {
		return Order{}, fmt.Errorf("order %s customer info: %w", o.LocalOrderID, err)
	}
	o.PayerInfo = payer
	o.ProviderResponse = providerPayload
	return o, nil
}

func nullJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
