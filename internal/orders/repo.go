package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres Order Store. Schema: migrations/001_init.sql.
type PGStore struct{ DB *pgxpool.Pool }

var _ Store = (*PGStore)(nil)

const orderColumns = `id, customer_id, customer_username, customer_display_name, flow_kind, status, fields, created_at, updated_at`

// StartDraft: reject old drafts + insert the new one in one transaction, so
// two back-to-back starts cannot leave two filling orders behind.
func (r *PGStore) StartDraft(ctx context.Context, c Customer, kind FlowKind) (Order, []int64, error) {
	if !kind.Valid() {
		return Order{}, nil, fmt.Errorf("orders: start draft: invalid flow kind %q", kind)
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, nil, unavailable("start draft", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// serialize concurrent starts of the same customer
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, c.ID); err != nil {
		return Order{}, nil, unavailable("start draft", err)
	}
	rejected, err := rejectFilling(ctx, tx, c.ID)
	if err != nil {
		return Order{}, nil, unavailable("start draft", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO orders(customer_id, customer_username, customer_display_name, flow_kind, status, fields)
		VALUES ($1, $2, $3, $4, 'filling', '{}'::jsonb)
		RETURNING `+orderColumns,
		c.ID, c.Username, c.DisplayName, string(kind))
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, nil, unavailable("start draft", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, nil, unavailable("start draft", err)
	}
	return o, rejected, nil
}

func (r *PGStore) RejectDrafts(ctx context.Context, customerID int64) ([]int64, error) {
	ids, err := rejectFilling(ctx, r.DB, customerID)
	if err != nil {
		return nil, unavailable("reject drafts", err)
	}
	return ids, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func rejectFilling(ctx context.Context, q querier, customerID int64) ([]int64, error) {
	rows, err := q.Query(ctx, `
		WITH moved AS (
			UPDATE orders SET status = 'rejected', updated_at = now()
			WHERE customer_id = $1 AND status = 'filling'
			RETURNING id
		)
		SELECT id FROM moved ORDER BY id`, customerID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *PGStore) ActiveDraft(ctx context.Context, customerID int64) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE customer_id = $1 AND status = 'filling'
		ORDER BY id DESC LIMIT 1`, customerID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, unavailable("active draft", err)
	}
	return o, nil
}

func (r *PGStore) Get(ctx context.Context, id int64) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, unavailable("get", err)
	}
	return o, nil
}

func (r *PGStore) SetField(ctx context.Context, id int64, name, value string) error {
	if !KnownField(name) {
		return fmt.Errorf("orders: set field %q: %w", name, ErrUnknownField)
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET fields = fields || jsonb_build_object($2::text, $3::text), updated_at = now()
		WHERE id = $1`, id, name, value)
	if err != nil {
		return unavailable("set field", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGStore) Transition(ctx context.Context, id int64, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("orders: transition %s -> %s not allowed", from, to)
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, id, string(from), string(to))
	if err != nil {
		return unavailable("transition", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	// distinguish a missing row from a lost race
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return unavailable("transition", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStaleStatus
}

func (r *PGStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := r.DB.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE flow_kind = 'machining'),
		       count(*) FILTER (WHERE flow_kind = 'engine_repair'),
		       count(*) FILTER (WHERE status = 'new'),
		       count(*) FILTER (WHERE status = 'completed')
		FROM orders`).Scan(&st.Total, &st.Machining, &st.EngineRepair, &st.Active, &st.Completed)
	if err != nil {
		return Stats{}, unavailable("stats", err)
	}
	return st, nil
}

func (r *PGStore) Recent(ctx context.Context, status Status, limit int) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE $1 = '' OR status = $1
		ORDER BY id DESC LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, unavailable("recent", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Order, error) { return scanOrder(row) })
	if err != nil {
		return nil, unavailable("recent", err)
	}
	return out, nil
}

func (r *PGStore) RecentClients(ctx context.Context, limit int) ([]ClientSummary, error) {
	// names come from the customer's newest order
	rows, err := r.DB.Query(ctx, `
		SELECT customer_id, customer_username, customer_display_name, order_count, last_order
		FROM (
			SELECT DISTINCT ON (customer_id)
			       customer_id, customer_username, customer_display_name,
			       count(*) OVER (PARTITION BY customer_id) AS order_count,
			       max(created_at) OVER (PARTITION BY customer_id) AS last_order
			FROM orders
			ORDER BY customer_id, id DESC
		) c
		ORDER BY last_order DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, unavailable("recent clients", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ClientSummary, error) {
		var cs ClientSummary
		err := row.Scan(&cs.CustomerID, &cs.Username, &cs.DisplayName, &cs.Orders, &cs.LastOrderAt)
		return cs, err
	})
	if err != nil {
		return nil, unavailable("recent clients", err)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o       Order
		kind    string
		status  string
		rawJSON []byte
		created time.Time
		updated time.Time
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerUsername, &o.CustomerDisplayName,
		&kind, &status, &rawJSON, &created, &updated); err != nil {
		return Order{}, err
	}
	o.Kind = FlowKind(kind)
	o.Status = Status(status)
	o.CreatedAt, o.UpdatedAt = created, updated
	o.Fields = Fields{}
	if len(rawJSON) > 0 {
		if err := json.Unmarshal(rawJSON, &o.Fields); err != nil {
			return Order{}, fmt.Errorf("decode fields: %w", err)
		}
	}
	return o, nil
}
