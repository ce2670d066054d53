package clinic

import (
	"context"
	"fmt"
	"sync"

	"github.com/eyecare/clinic/internal/platform/snapshot"
)

// MemoryStore holds the five tables in process memory behind one RWMutex.
// Every write runs against a clone of the current state; the clone is saved
// to the snapshot backend and only then swapped in, so a failed write or a
// failed save leaves the visible state untouched.
type MemoryStore struct {
	mu      sync.RWMutex
	st      *state
	backend snapshot.Backend
}

// NewMemoryStore returns an empty store. A nil backend keeps state in memory
// only.
func NewMemoryStore(backend snapshot.Backend) *MemoryStore {
	if backend == nil {
		backend = snapshot.NewMemory()
	}
	return &MemoryStore{st: newState(), backend: backend}
}

type txKey struct{}

type storeTx struct {
	owner *MemoryStore
	st    *state
	// durable is set once a table (not only the session queue) changed.
	durable bool
	dirty   bool
}

func (s *MemoryStore) txFrom(ctx context.Context) *storeTx {
	t, ok := ctx.Value(txKey{}).(*storeTx)
	if !ok || t.owner != s {
		return nil
	}
	return t
}

// InTx implements TxRunner. Nested calls join the outer transaction.
func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The lock may have been held past the caller's deadline.
	if err := ctx.Err(); err != nil {
		return err
	}

	t := &storeTx{owner: s, st: s.st.clone()}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	if !t.dirty {
		return nil
	}
	if t.durable {
		if err := s.persist(ctx, t.st); err != nil {
			return err
		}
	}
	s.st = t.st
	return nil
}

func (s *MemoryStore) persist(ctx context.Context, st *state) error {
	buckets, err := encodeState(st)
	if err != nil {
		return err
	}
	if err := s.backend.Save(ctx, buckets); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// view runs fn against the state visible to ctx.
func (s *MemoryStore) view(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t := s.txFrom(ctx); t != nil {
		return fn(t.st)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

// write runs fn inside the caller's transaction, or a new one.
func (s *MemoryStore) write(ctx context.Context, durable bool, fn func(st *state) error) error {
	return s.InTx(ctx, func(ctx context.Context) error {
		t := s.txFrom(ctx)
		if err := fn(t.st); err != nil {
			return err
		}
		t.dirty = true
		t.durable = t.durable || durable
		return nil
	})
}

// Seed replaces every table with d and saves the result.
func (s *MemoryStore) Seed(ctx context.Context, d Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st := stateFromDataset(d)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx, st); err != nil {
		return err
	}
	s.st = st
	return nil
}

// Load replaces the in-memory state with the backend snapshot. It reports
// false, leaving the store unchanged, when the backend holds nothing.
func (s *MemoryStore) Load(ctx context.Context) (bool, error) {
	buckets, err := s.backend.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if len(buckets) == 0 {
		return false, nil
	}
	st, err := decodeState(buckets)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.st = st
	s.mu.Unlock()
	return true, nil
}

// Export returns a deep copy of every table.
func (s *MemoryStore) Export(ctx context.Context) (Dataset, error) {
	var d Dataset
	err := s.view(ctx, func(st *state) error {
		d = st.dataset()
		return nil
	})
	return d, err
}

// Repositories returns the table views over this store.
func (s *MemoryStore) Repositories() Repositories {
	return Repositories{
		Patients: &table[Patient]{
			store: s, entity: "patient", kind: KindPatient,
			rows:  func(st *state) *[]Patient { return &st.patients },
			clone: clonePatient,
			setID: func(p *Patient, id string) { p.ID = id },
		},
		Appointments: &table[Appointment]{
			store: s, entity: "appointment", kind: KindAppointment,
			rows:  func(st *state) *[]Appointment { return &st.appointments },
			clone: cloneAppointment,
			setID: func(a *Appointment, id string) { a.ID = id },
		},
		Examinations: &table[Examination]{
			store: s, entity: "examination", kind: KindExamination,
			rows:  func(st *state) *[]Examination { return &st.examinations },
			clone: cloneExamination,
			setID: func(e *Examination, id string) { e.ID = id },
		},
		Orders: &orderTable{table: &table[Order]{
			store: s, entity: "order", kind: KindOrder,
			rows:  func(st *state) *[]Order { return &st.orders },
			clone: cloneOrder,
			setID: func(o *Order, id string) { o.ID = id },
		}},
		Billing: &table[BillingRecord]{
			store: s, entity: "billing record", kind: KindBilling,
			rows:  func(st *state) *[]BillingRecord { return &st.billing },
			clone: cloneBilling,
			setID: func(b *BillingRecord, id string) { b.ID = id },
		},
		Tx: s,
	}
}

// table is the CRUD surface shared by every entity type.
type table[T keyed] struct {
	store  *MemoryStore
	entity string
	kind   EntityKind
	rows   func(*state) *[]T
	clone  func(T) T
	setID  func(*T, string)
}

func (t *table[T]) List(ctx context.Context) ([]T, error) {
	var out []T
	err := t.store.view(ctx, func(st *state) error {
		out = nonNil(cloneRows(*t.rows(st), t.clone))
		return nil
	})
	return out, err
}

func (t *table[T]) GetByID(ctx context.Context, id string) (T, error) {
	var out T
	err := t.store.view(ctx, func(st *state) error {
		for _, r := range *t.rows(st) {
			if r.rowID() == id {
				out = t.clone(r)
				return nil
			}
		}
		return notFound(t.entity, id)
	})
	return out, err
}

func (t *table[T]) ListByPatient(ctx context.Context, patientID string) ([]T, error) {
	out := []T{}
	err := t.store.view(ctx, func(st *state) error {
		for _, r := range *t.rows(st) {
			if r.ownerID() == patientID {
				out = append(out, t.clone(r))
			}
		}
		return nil
	})
	return out, err
}

func (t *table[T]) Create(ctx context.Context, v T) (T, error) {
	var out T
	err := t.store.write(ctx, true, func(st *state) error {
		rows := t.rows(st)
		row := t.clone(v)
		t.setID(&row, st.ids.Next(t.kind, len(*rows)))
		*rows = append(*rows, row)
		out = t.clone(row)
		return nil
	})
	return out, err
}

func (t *table[T]) Update(ctx context.Context, id string, mutate func(*T) error) (T, error) {
	var out T
	err := t.store.write(ctx, true, func(st *state) error {
		rows := *t.rows(st)
		for i := range rows {
			if rows[i].rowID() != id {
				continue
			}
			row := t.clone(rows[i])
			if err := mutate(&row); err != nil {
				return err
			}
			t.setID(&row, id)
			rows[i] = row
			out = t.clone(row)
			return nil
		}
		return notFound(t.entity, id)
	})
	return out, err
}

func (t *table[T]) Delete(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := t.store.write(ctx, true, func(st *state) error {
		removed = t.remove(st, id)
		return nil
	})
	return removed, err
}

func (t *table[T]) remove(st *state, id string) bool {
	rows := t.rows(st)
	kept := (*rows)[:0]
	for _, r := range *rows {
		if r.rowID() != id {
			kept = append(kept, r)
		}
	}
	removed := len(kept) < len(*rows)
	*rows = kept
	return removed
}

// orderTable adds the lab order work queue to the order table. New orders
// join the back of the queue and deleted orders leave it.
type orderTable struct {
	*table[Order]
}

func (t *orderTable) Create(ctx context.Context, o Order) (Order, error) {
	var out Order
	err := t.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = t.table.Create(ctx, o)
		if err != nil {
			return err
		}
		tx := t.store.txFrom(ctx)
		tx.st.queue = append(tx.st.queue, out.ID)
		return nil
	})
	return out, err
}

func (t *orderTable) Delete(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := t.store.write(ctx, true, func(st *state) error {
		removed = t.remove(st, id)
		if removed {
			kept := st.queue[:0]
			for _, q := range st.queue {
				if q != id {
					kept = append(kept, q)
				}
			}
			st.queue = kept
		}
		return nil
	})
	return removed, err
}

func (t *orderTable) Queue(ctx context.Context) ([]string, error) {
	var out []string
	err := t.store.view(ctx, func(st *state) error {
		out = append([]string{}, st.queue...)
		return nil
	})
	return out, err
}

func (t *orderTable) Swap(ctx context.Context, i, j int) error {
	return t.store.write(ctx, false, func(st *state) error {
		if i < 0 || j < 0 || i >= len(st.queue) || j >= len(st.queue) {
			return fmt.Errorf("swap %d and %d of %d: %w", i, j, len(st.queue), ErrQueueRange)
		}
		st.queue[i], st.queue[j] = st.queue[j], st.queue[i]
		return nil
	})
}
