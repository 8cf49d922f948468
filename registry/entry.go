package registry

import (
	"context"

	"travel-planner/models"
)

// State is the reconciliation state of a managed place.
type State int

const (
	StatePendingAdd State = iota + 1
	StateCommitted
	StatePendingMove
	StatePendingUpdate
	StatePendingDelete
	// StateUnsynced is a place the ledger has never confirmed. It stays
	// visible and is resubmitted by Reconcile.
	StateUnsynced
)

func (s State) String() string {
	switch s {
	case StatePendingAdd:
		return "pending_add"
	case StateCommitted:
		return "committed"
	case StatePendingMove:
		return "pending_move"
	case StatePendingUpdate:
		return "pending_update"
	case StatePendingDelete:
		return "pending_delete"
	case StateUnsynced:
		return "unsynced"
	default:
		return "unknown"
	}
}

// Pending reports whether a ledger call is in flight for the place.
func (s State) Pending() bool {
	return s == StatePendingAdd || s == StatePendingMove || s == StatePendingUpdate || s == StatePendingDelete
}

// Entry is a read-only snapshot of a managed place.
type Entry struct {
	Key   string
	Place models.Place
	State State
}

type entry struct {
	key   string
	local string
	place models.Place
	state State
	seq   uint64

	prev    models.Place
	prevSeq uint64
}

func (e *entry) snapshot() Entry {
	return Entry{Key: e.key, Place: e.place, State: e.state}
}

// Op is the handle for a mutation. The optimistic result is available
// immediately; the ledger outcome arrives later.
type Op struct {
	key        string
	optimistic models.Place
	done       chan struct{}
	result     models.Place
	err        error
}

func newOp(key string, p models.Place) *Op {
	return &Op{key: key, optimistic: p, done: make(chan struct{})}
}

func completedOp(key string, p models.Place) *Op {
	op := newOp(key, p)
	op.finish(p, nil)
	return op
}

func (o *Op) finish(p models.Place, err error) {
	o.result, o.err = p, err
	close(o.done)
}

// Key is the registry key of the place at the time the operation was issued.
// For additions it is a local key that remains resolvable after the ledger id is adopted.
func (o *Op) Key() string { return o.key }

// Place is the optimistic state applied when the operation was issued.
func (o *Op) Place() models.Place { return o.optimistic }

func (o *Op) Done() <-chan struct{} { return o.done }

// Err is nil until Done is closed.
func (o *Op) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Wait blocks until the ledger confirms or rejects the operation.
func (o *Op) Wait(ctx context.Context) (models.Place, error) {
	select {
	case <-o.done:
		return o.result, o.err
	case <-ctx.Done():
		return models.Place{}, ctx.Err()
	}
}
