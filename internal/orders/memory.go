package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*Order
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: map[int64]*Order{}, now: time.Now}
}

func (m *MemoryStore) StartDraft(_ context.Context, c Customer, kind FlowKind) (Order, []int64, error) {
	if !kind.Valid() {
		return Order{}, nil, fmt.Errorf("orders: start draft: invalid flow kind %q", kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rejected := m.rejectLocked(c.ID)
	m.nextID++
	now := m.now()
	o := &Order{
		ID:                  m.nextID,
		CustomerID:          c.ID,
		CustomerUsername:    c.Username,
		CustomerDisplayName: c.DisplayName,
		Kind:                kind,
		Status:              StatusFilling,
		Fields:              Fields{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	m.orders[o.ID] = o
	return copyOrder(o), rejected, nil
}

func (m *MemoryStore) RejectDrafts(_ context.Context, customerID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejectLocked(customerID), nil
}

func (m *MemoryStore) rejectLocked(customerID int64) []int64 {
	var ids []int64
	for _, o := range m.orders {
		if o.CustomerID == customerID && o.Status == StatusFilling {
			o.Status = StatusRejected
			o.UpdatedAt = m.now()
			ids = append(ids, o.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *MemoryStore) ActiveDraft(_ context.Context, customerID int64) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Order
	for _, o := range m.orders {
		if o.CustomerID == customerID && o.Status == StatusFilling && (best == nil || o.ID > best.ID) {
			best = o
		}
	}
	if best == nil {
		return Order{}, ErrNotFound
	}
	return copyOrder(best), nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return copyOrder(o), nil
}

func (m *MemoryStore) SetField(_ context.Context, id int64, name, value string) error {
	if !KnownField(name) {
		return fmt.Errorf("orders: set field %q: %w", name, ErrUnknownField)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Fields[name] = value
	o.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) Transition(_ context.Context, id int64, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("orders: transition %s -> %s not allowed", from, to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Status != from {
		return ErrStaleStatus
	}
	o.Status = to
	o.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) Stats(context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st Stats
	for _, o := range m.orders {
		st.Total++
		switch o.Kind {
		case FlowMachining:
			st.Machining++
		case FlowEngineRepair:
			st.EngineRepair++
		}
		switch o.Status {
		case StatusNew:
			st.Active++
		case StatusCompleted:
			st.Completed++
		}
	}
	return st, nil
}

func (m *MemoryStore) Recent(_ context.Context, status Status, limit int) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) RecentClients(_ context.Context, limit int) ([]ClientSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byCustomer := map[int64]*ClientSummary{}
	latest := map[int64]int64{}
	for _, o := range m.orders {
		cs, ok := byCustomer[o.CustomerID]
		if !ok {
			cs = &ClientSummary{CustomerID: o.CustomerID}
			byCustomer[o.CustomerID] = cs
		}
		cs.Orders++
		// names follow the customer's newest order
		if o.ID > latest[o.CustomerID] {
			latest[o.CustomerID] = o.ID
			cs.Username, cs.DisplayName = o.CustomerUsername, o.CustomerDisplayName
		}
		if o.CreatedAt.After(cs.LastOrderAt) {
			cs.LastOrderAt = o.CreatedAt
		}
	}
	out := make([]ClientSummary, 0, len(byCustomer))
	for _, cs := range byCustomer {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastOrderAt.Equal(out[j].LastOrderAt) {
			return latest[out[i].CustomerID] > latest[out[j].CustomerID]
		}
		return out[i].LastOrderAt.After(out[j].LastOrderAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Put stores o as-is, replacing any order with the same id. Seeds fixtures.
func (m *MemoryStore) Put(o Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.Fields == nil {
		o.Fields = Fields{}
	}
	cp := copyOrder(&o)
	m.orders[o.ID] = &cp
	if o.ID > m.nextID {
		m.nextID = o.ID
	}
}

func copyOrder(o *Order) Order {
	cp := *o
	cp.Fields = o.Fields.Clone()
	return cp
}
