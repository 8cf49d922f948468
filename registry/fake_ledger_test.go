package registry

import (
	"context"
	"fmt"
	"sync"

	"travel-planner/models"
)

type ledgerCall struct {
	Op     string
	ID     string
	Place  models.Place
	Update models.PlaceUpdate
}

// fakeLedger records calls. While held, calls block until release or ctx ends.
type fakeLedger struct {
	mu     sync.Mutex
	calls  []ledgerCall
	nextID int
	places map[string]models.Place

	createErr error
	updateErr error
	deleteErr error

	hold    chan struct{}
	started chan string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{places: map[string]models.Place{}, started: make(chan string, 64)}
}

// holdCalls makes subsequent calls block until the returned func is called.
func (f *fakeLedger) holdCalls() (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.hold = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakeLedger) enter(ctx context.Context, call ledgerCall) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	hold := f.hold
	f.mu.Unlock()

	f.started <- call.Op
	if hold == nil {
		return nil
	}
	select {
	case <-hold:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeLedger) Create(ctx context.Context, p models.Place) (models.Place, error) {
	if err := f.enter(ctx, ledgerCall{Op: "create", Place: p}); err != nil {
		return models.Place{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return models.Place{}, f.createErr
	}
	f.nextID++
	p.ID = fmt.Sprintf("id-%d", f.nextID)
	f.places[p.ID] = p
	return p, nil
}

func (f *fakeLedger) Update(ctx context.Context, u models.PlaceUpdate) error {
	if err := f.enter(ctx, ledgerCall{Op: "update", ID: u.ID, Update: u}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	p := f.places[u.ID]
	p.Visited = u.Visited
	if u.Category != "" {
		p.Category = u.Category
	}
	f.places[u.ID] = p
	return nil
}

func (f *fakeLedger) Delete(ctx context.Context, id string) error {
	if err := f.enter(ctx, ledgerCall{Op: "delete", ID: id}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.places, id)
	return nil
}

func (f *fakeLedger) setErrors(create, update, del error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr, f.updateErr, f.deleteErr = create, update, del
}

func (f *fakeLedger) Calls() []ledgerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledgerCall(nil), f.calls...)
}
