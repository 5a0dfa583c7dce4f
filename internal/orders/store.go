package orders

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("order not found")
	ErrUnavailable  = errors.New("order store unavailable")
	ErrStaleStatus  = errors.New("order status changed concurrently")
	ErrUnknownField = errors.New("unknown order field")
)

// Store is the durable Order Store. Every call is independent; there is no
// isolation between a field write and a status transition.
type Store interface {
	// StartDraft rejects every filling order of the customer and creates a new
	// filling order. Implementations with transactions do both atomically.
	// rejected lists the ids moved to rejected, ascending.
	StartDraft(ctx context.Context, c Customer, kind FlowKind) (o Order, rejected []int64, err error)
	// RejectDrafts moves every filling order of the customer to rejected and
	// returns their ids, ascending.
	RejectDrafts(ctx context.Context, customerID int64) ([]int64, error)
	// ActiveDraft returns the newest filling order of the customer.
	ActiveDraft(ctx context.Context, customerID int64) (Order, error)
	Get(ctx context.Context, id int64) (Order, error)
	SetField(ctx context.Context, id int64, name, value string) error
	// Transition is a compare-and-set on status. ErrStaleStatus when the
	// order is no longer in from.
	Transition(ctx context.Context, id int64, from, to Status) error

	Stats(ctx context.Context) (Stats, error)
	// Recent lists the newest orders, id descending. An empty status lists
	// every status.
	Recent(ctx context.Context, status Status, limit int) ([]Order, error)
	// RecentClients groups orders by customer, latest order first.
	RecentClients(ctx context.Context, limit int) ([]ClientSummary, error)
}

// Stats counts orders for the operator panel. Drafts still being filled are
// included in the totals.
type Stats struct {
	Total        int
	Machining    int
	EngineRepair int
	Active       int // status new
	Completed    int
}

type ClientSummary struct {
	CustomerID  int64
	Username    string
	DisplayName string
	Orders      int
	LastOrderAt time.Time
}

func unavailable(op string, err error) error {
	return fmt.Errorf("orders: %s: %w", op, errors.Join(ErrUnavailable, err))
}
