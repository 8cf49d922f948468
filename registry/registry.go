// Package registry owns the wantToGo and visited collections.
//
// Both collections are views over a single set of entries keyed by ledger id,
// so a place is in exactly one of them at any instant. Additions and moves are
// applied optimistically and confirmed by the ledger afterwards; deletions are
// applied only after the ledger confirms them. Every change is written through
// to the local store by a background writer.
package registry

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"travel-planner/models"
	"travel-planner/storage"
	apperrors "travel-planner/utils/errors"
)

// Ledger is the subset of the remote ledger the registry needs.
type Ledger interface {
	Create(ctx context.Context, p models.Place) (models.Place, error)
	Update(ctx context.Context, update models.PlaceUpdate) error
	Delete(ctx context.Context, id string) error
}

var ErrClosed = apperrors.NewAPIError("REGISTRY_CLOSED", "Registry is closed", 503)

const localKeyPrefix = "local-"

type Option func(*Registry)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithEventSink(sink EventSink) Option {
	return func(r *Registry) { r.sink = sink }
}

// WithRequestTimeout bounds every ledger call. A timeout surfaces as a
// TransientNetworkError.
func WithRequestTimeout(d time.Duration) Option {
	return func(r *Registry) { r.timeout = d }
}

// WithReconcileConcurrency caps parallel creates issued by Reconcile.
func WithReconcileConcurrency(n int) Option {
	return func(r *Registry) { r.reconcileLimit = n }
}

type Registry struct {
	ledger Ledger
	store  storage.Store
	logger *zap.Logger
	sink   EventSink

	timeout        time.Duration
	reconcileLimit int

	mu      sync.Mutex
	entries map[string]*entry
	aliases map[string]string
	seq     uint64
	closed  bool

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	dirty      chan struct{}
	flushes    chan chan error
	stop       chan struct{}
	writerDone chan struct{}
}

// New starts the registry's persistence writer. Call Hydrate before issuing
// mutations and Close when done.
func New(ledger Ledger, store storage.Store, opts ...Option) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		ledger:         ledger,
		store:          store,
		logger:         zap.NewNop(),
		timeout:        10 * time.Second,
		reconcileLimit: 4,
		entries:        map[string]*entry{},
		aliases:        map[string]string{},
		ctx:            ctx,
		cancel:         cancel,
		dirty:          make(chan struct{}, 1),
		flushes:        make(chan chan error),
		stop:           make(chan struct{}),
		writerDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.writer()
	return r
}

// Hydrate loads both collections from the local store. It never contacts the
// ledger: places with an id load as committed, places without one as unsynced.
// Places already managed by the registry are left untouched.
func (r *Registry) Hydrate(ctx context.Context) error {
	wantToGo, visited, err := r.store.LoadCollections(ctx)
	if err != nil {
		r.logger.Warn("hydrate failed", zap.Error(err))
		return err
	}

	r.mu.Lock()
	loaded := map[string]bool{}
	hydrateList := func(places []models.Place, isVisited bool) {
		for _, p := range places {
			p.Visited = isVisited
			if strings.TrimSpace(string(p.Category)) == "" {
				p.Category = models.CategoryNone
			} else if isVisited {
				p.Category = models.NormalizeCategory(string(p.Category))
			} else if c, ok := models.ParseCategory(string(p.Category)); ok {
				p.Category = c
			} else {
				p.Category = models.CategoryNone
			}

			if p.ID == "" {
				key := newLocalKey()
				r.entries[key] = &entry{key: key, local: key, place: p, state: StateUnsynced, seq: r.nextSeq()}
				continue
			}
			if existing, ok := r.entries[p.ID]; ok {
				if !loaded[p.ID] {
					continue
				}
				// The same id under both keys: visited is loaded last and wins.
				existing.place = p
				existing.seq = r.nextSeq()
				continue
			}
			loaded[p.ID] = true
			r.entries[p.ID] = &entry{key: p.ID, place: p, state: StateCommitted, seq: r.nextSeq()}
		}
	}
	hydrateList(wantToGo, false)
	hydrateList(visited, true)
	r.mu.Unlock()

	r.logger.Info("hydrated collections", zap.Int("want_to_go", len(wantToGo)), zap.Int("visited", len(visited)))
	r.markDirty()
	r.emit(Event{Kind: EventChanged})
	return nil
}

// AddSuggestion makes a search candidate a managed place in list.
//
// Visited additions always carry a category from the closed set; anything
// unrecognised becomes "outro". The place is visible immediately and the ledger
// create runs in the background.
func (r *Registry) AddSuggestion(c models.Candidate, list models.List, category string) (*Op, error) {
	if !list.Valid() {
		return nil, apperrors.Validation("unknown list %q", list)
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return nil, apperrors.Validation("place name is required")
	}
	if !models.ValidCoordinates(c.Lat, c.Lng) {
		return nil, apperrors.Validation("invalid coordinates: lat=%f, lng=%f", c.Lat, c.Lng)
	}

	p := models.Place{
		Name:    name,
		Address: strings.TrimSpace(c.Address),
		Lat:     c.Lat,
		Lng:     c.Lng,
		Visited: list == models.ListVisited,
	}
	if p.Visited {
		p.Category = models.NormalizeCategory(category)
	} else if cat, ok := models.ParseCategory(category); ok {
		p.Category = cat
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	key := newLocalKey()
	e := &entry{key: key, local: key, place: p, state: StatePendingAdd, seq: r.nextSeq()}
	r.entries[key] = e
	r.inflight.Add(1)
	r.mu.Unlock()

	r.markDirty()
	r.emit(Event{Kind: EventChanged, Key: key})
	r.emit(Event{Kind: EventSuggestionsCleared})

	op := newOp(key, p)
	r.launch(func(ctx context.Context) {
		created, err := r.ledger.Create(ctx, p)
		r.completeAdd(key, created, err, op)
	})
	return op, nil
}

// MoveTo moves a committed place to list. The place leaves its current list
// and joins list in a single step.
func (r *Registry) MoveTo(key string, list models.List) (*Op, error) {
	if !list.Valid() {
		return nil, apperrors.Validation("unknown list %q", list)
	}
	return r.transition(key, StatePendingMove, func(p *models.Place) (bool, error) {
		if p.List() == list {
			return false, apperrors.Validation("place is already in %s", list)
		}
		p.Visited = list == models.ListVisited
		return true, nil
	}, func(p models.Place) models.PlaceUpdate {
		return models.PlaceUpdate{ID: p.ID, Visited: p.Visited}
	})
}

// Categorize sets the category of a place. A place in wantToGo moves to
// visited in the same step.
func (r *Registry) Categorize(key string, category string) (*Op, error) {
	cat, ok := models.ParseCategory(category)
	if !ok {
		return nil, apperrors.Validation("unknown category %q", category)
	}
	return r.transition(key, StatePendingUpdate, func(p *models.Place) (bool, error) {
		moved := !p.Visited
		p.Visited = true
		p.Category = cat
		return moved, nil
	}, func(p models.Place) models.PlaceUpdate {
		return models.PlaceUpdate{ID: p.ID, Visited: p.Visited, Category: p.Category}
	})
}

// transition applies mutate optimistically and confirms it with an update.
// mutate reports whether the place changes list.
func (r *Registry) transition(
	key string,
	pendingState State,
	mutate func(p *models.Place) (bool, error),
	update func(p models.Place) models.PlaceUpdate,
) (*Op, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	e, err := r.mutable(key)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	before := e.place
	next := e.place
	moved, err := mutate(&next)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if next == before {
		snap := e.place
		r.mu.Unlock()
		return completedOp(e.key, snap), nil
	}

	e.prev, e.prevSeq = before, e.seq
	e.place = next
	if moved {
		e.seq = r.nextSeq()
	}

	if e.state == StateUnsynced {
		// The ledger has never seen this place; the next create carries the change.
		r.mu.Unlock()
		r.markDirty()
		r.emit(Event{Kind: EventChanged, Key: e.key})
		return completedOp(e.key, next), nil
	}

	e.state = pendingState
	if moved {
		e.state = StatePendingMove
	}
	id := e.key
	r.inflight.Add(1)
	r.mu.Unlock()

	r.markDirty()
	r.emit(Event{Kind: EventChanged, Key: id})

	op := newOp(id, next)
	r.launch(func(ctx context.Context) {
		err := r.ledger.Update(ctx, update(next))
		r.completeUpdate(id, err, op)
	})
	return op, nil
}

// Delete removes a place once the ledger confirms. Until then the place stays
// visible in its list in StatePendingDelete; on failure it returns to committed.
func (r *Registry) Delete(key string) (*Op, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	e, err := r.mutable(key)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	if e.state == StateUnsynced {
		p := e.place
		r.remove(e)
		r.mu.Unlock()
		r.markDirty()
		r.emit(Event{Kind: EventChanged, Key: key})
		return completedOp(key, p), nil
	}

	e.state = StatePendingDelete
	id, p := e.key, e.place
	r.inflight.Add(1)
	r.mu.Unlock()

	r.emit(Event{Kind: EventChanged, Key: id})

	op := newOp(id, p)
	r.launch(func(ctx context.Context) {
		err := r.ledger.Delete(ctx, id)
		r.completeDelete(id, err, op)
	})
	return op, nil
}

// Reconcile resubmits every unsynced place to the ledger. It returns the first
// failure after all creates have finished; failed places stay unsynced.
func (r *Registry) Reconcile(ctx context.Context) error {
	type job struct {
		key   string
		place models.Place
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	var jobs []job
	for key, e := range r.entries {
		if e.state == StateUnsynced {
			e.state = StatePendingAdd
			jobs = append(jobs, job{key: key, place: e.place})
		}
	}
	r.inflight.Add(len(jobs))
	r.mu.Unlock()

	if len(jobs) == 0 {
		return nil
	}
	r.logger.Info("reconciling unsynced places", zap.Int("count", len(jobs)))
	r.emit(Event{Kind: EventChanged})

	g := new(errgroup.Group)
	if r.reconcileLimit > 0 {
		g.SetLimit(r.reconcileLimit)
	}
	for _, j := range jobs {
		g.Go(func() error {
			defer r.inflight.Done()
			callCtx, cancel := context.WithTimeout(r.ctx, r.timeout)
			defer cancel()
			stop := context.AfterFunc(ctx, cancel)
			defer stop()
			created, err := r.ledger.Create(callCtx, j.place)
			r.completeAdd(j.key, created, err, nil)
			return err
		})
	}
	return g.Wait()
}

// WantToGo returns the want-to-go view in insertion order.
func (r *Registry) WantToGo() []Entry {
	return r.view(models.ListWantToGo)
}

// Visited returns the visited view in insertion order.
func (r *Registry) Visited() []Entry {
	return r.view(models.ListVisited)
}

// Get returns the entry for key, which may be a ledger id or the local key
// returned by AddSuggestion.
func (r *Registry) Get(key string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.resolve(key)
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(), true
}

// Status reports the lifecycle state of key. Removed places report false.
func (r *Registry) Status(key string) (State, bool) {
	e, ok := r.Get(key)
	return e.State, ok
}

// Collections returns both views as plain places, ready for persistence.
func (r *Registry) Collections() (wantToGo, visited []models.Place) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collectionsLocked()
}

// Flush blocks until the current state has been written to the store.
func (r *Registry) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case r.flushes <- reply:
	case <-r.writerDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects new mutations, waits for in-flight ledger calls and writes
// the final state. If ctx ends first, in-flight calls are cancelled.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.writerDone
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
		r.cancel()
		<-drained
	}
	r.cancel()

	close(r.stop)
	<-r.writerDone
	return err
}

func (r *Registry) completeAdd(key string, created models.Place, err error, op *Op) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()
		if op != nil {
			op.finish(models.Place{}, apperrors.NotFound("place %s vanished before confirmation", key))
		}
		return
	}

	if err != nil {
		e.state = StateUnsynced
		p := e.place
		r.mu.Unlock()

		r.logger.Warn("ledger create failed, keeping place unsynced",
			zap.String("key", key), zap.String("name", p.Name), zap.Error(err))
		r.markDirty()
		r.emit(Event{Kind: EventNotification, Key: key, Err: err})
		r.emit(Event{Kind: EventChanged, Key: key})
		if op != nil {
			op.finish(p, err)
		}
		return
	}

	if existing, dup := r.entries[created.ID]; dup && existing != e {
		// The ledger already knew this place under an id we manage.
		delete(r.entries, key)
		r.aliases[key] = created.ID
		p := existing.place
		r.mu.Unlock()
		r.logger.Info("ledger returned an id already managed, merging", zap.String("id", created.ID))
		r.markDirty()
		r.emit(Event{Kind: EventChanged, Key: created.ID})
		if op != nil {
			op.finish(p, nil)
		}
		return
	}

	if created.Visited != e.place.Visited || created.Category != e.place.Category {
		r.logger.Debug("ledger record differs from optimistic state, adopting ledger",
			zap.String("id", created.ID))
		if created.Visited != e.place.Visited {
			e.seq = r.nextSeq()
		}
	}
	delete(r.entries, key)
	e.key = created.ID
	e.place = created
	e.state = StateCommitted
	r.entries[created.ID] = e
	if e.local != "" {
		r.aliases[e.local] = created.ID
	}
	p := e.place
	r.mu.Unlock()

	r.logger.Debug("place confirmed", zap.String("id", created.ID), zap.String("local_key", key))
	r.markDirty()
	r.emit(Event{Kind: EventChanged, Key: created.ID})
	if op != nil {
		op.finish(p, nil)
	}
}

func (r *Registry) completeUpdate(id string, err error, op *Op) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		op.finish(models.Place{}, apperrors.NotFound("place %s vanished before confirmation", id))
		return
	}
	if err != nil {
		e.place, e.seq = e.prev, e.prevSeq
	}
	e.state = StateCommitted
	e.prev, e.prevSeq = models.Place{}, 0
	p := e.place
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("ledger update failed, reverting", zap.String("id", id), zap.Error(err))
		r.markDirty()
		r.emit(Event{Kind: EventNotification, Key: id, Err: err})
	}
	r.emit(Event{Kind: EventChanged, Key: id})
	op.finish(p, err)
}

func (r *Registry) completeDelete(id string, err error, op *Op) {
	// Deleting is idempotent at the ledger; a missing record is already gone.
	if errors.Is(err, apperrors.ErrNotFound) {
		err = nil
	}

	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		op.finish(models.Place{}, err)
		return
	}
	p := e.place
	if err != nil {
		e.state = StateCommitted
	} else {
		r.remove(e)
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("ledger delete failed, keeping place", zap.String("id", id), zap.Error(err))
		r.emit(Event{Kind: EventNotification, Key: id, Err: err})
	} else {
		r.markDirty()
	}
	r.emit(Event{Kind: EventChanged, Key: id})
	op.finish(p, err)
}

// mutable resolves key and rejects places with a transition in flight.
// Callers hold r.mu.
func (r *Registry) mutable(key string) (*entry, error) {
	e, ok := r.resolve(key)
	if !ok {
		return nil, apperrors.NotFound("place %s", key)
	}
	if e.state.Pending() {
		return nil, apperrors.Conflict("place %s is %s", key, e.state)
	}
	return e, nil
}

func (r *Registry) resolve(key string) (*entry, bool) {
	if e, ok := r.entries[key]; ok {
		return e, true
	}
	if id, ok := r.aliases[key]; ok {
		e, ok := r.entries[id]
		return e, ok
	}
	return nil, false
}

func (r *Registry) remove(e *entry) {
	delete(r.entries, e.key)
	if e.local != "" {
		delete(r.aliases, e.local)
	}
	for alias, id := range r.aliases {
		if id == e.key {
			delete(r.aliases, alias)
		}
	}
}

func (r *Registry) view(list models.List) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entry
	for _, e := range r.entries {
		if e.place.List() == list {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	entries := make([]Entry, len(out))
	for i, e := range out {
		entries[i] = e.snapshot()
	}
	return entries
}

func (r *Registry) collectionsLocked() (wantToGo, visited []models.Place) {
	ordered := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })
	wantToGo, visited = []models.Place{}, []models.Place{}
	for _, e := range ordered {
		if e.place.Visited {
			visited = append(visited, e.place)
		} else {
			wantToGo = append(wantToGo, e.place)
		}
	}
	return wantToGo, visited
}

func (r *Registry) nextSeq() uint64 {
	r.seq++
	return r.seq
}

// launch runs fn on its own goroutine with the per-call timeout. The caller
// has already added to r.inflight.
func (r *Registry) launch(fn func(ctx context.Context)) {
	go func() {
		defer r.inflight.Done()
		ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
		defer cancel()
		fn(ctx)
	}()
}

func (r *Registry) emit(ev Event) {
	if r.sink != nil {
		r.sink(ev)
	}
}

func (r *Registry) markDirty() {
	select {
	case r.dirty <- struct{}{}:
	default:
	}
}

func (r *Registry) writer() {
	defer close(r.writerDone)
	for {
		select {
		case <-r.dirty:
			r.save()
		case reply := <-r.flushes:
			reply <- r.save()
		case <-r.stop:
			select {
			case <-r.dirty:
				r.save()
			default:
			}
			return
		}
	}
}

func (r *Registry) save() error {
	r.mu.Lock()
	wantToGo, visited := r.collectionsLocked()
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.SaveCollections(ctx, wantToGo, visited); err != nil {
		r.logger.Error("persisting collections failed", zap.Error(err))
		return err
	}
	return nil
}

func newLocalKey() string {
	return localKeyPrefix + uuid.NewString()
}
