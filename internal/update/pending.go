package update

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/treeup/internal/canon"
	"github.com/roach88/treeup/internal/doc"
	"github.com/roach88/treeup/internal/node"
)

// Pending is the pending update list of one statement: one List per
// touched store, plus one for constructed fragments.
//
// Pending is not safe for concurrent use. Registration happens on the
// evaluating goroutine; ValidateAndApply runs once, at the end.
type Pending struct {
	id     string
	stores map[string]Store
	gens   map[string]uint64 // store generations when the statement began
	arena  *node.Arena
	logger *slog.Logger
	ids    IDGenerator

	lists map[string]*List
	frags *List // fragment targets; bound to no store
	done  bool
}

// marshalSummary encodes a list summary for the store journal.
var marshalSummary = canon.Marshal

// Option configures a Pending.
type Option func(*Pending)

// WithArena sets the arena that fragment targets are resolved in.
func WithArena(a *node.Arena) Option {
	return func(p *Pending) {
		p.arena = a
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pending) {
		p.logger = l
	}
}

// WithStatementID sets the statement id instead of generating one.
func WithStatementID(id string) Option {
	return func(p *Pending) {
		p.id = id
	}
}

// WithIDGenerator sets the statement id generator. The default is
// UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(p *Pending) {
		p.ids = g
	}
}

// NewPending creates an empty pending list over the given stores.
// Stores are addressed by Name; a later store replaces an earlier one
// with the same name.
//
// NewPending records the generation of every store: the statement's
// snapshot. Create the Pending before reading positions from the stores.
func NewPending(stores []Store, opts ...Option) *Pending {
	p := &Pending{
		stores: make(map[string]Store, len(stores)),
		gens:   make(map[string]uint64, len(stores)),
		lists:  make(map[string]*List),
		ids:    UUIDv7Generator{},
	}
	for _, s := range stores {
		p.stores[s.Name()] = s
		p.gens[s.Name()] = s.Data().Generation()
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.arena == nil {
		p.arena = node.NewArena()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.id == "" {
		p.id = p.ids.Generate()
	}
	p.logger = p.logger.With(slog.String("statement", p.id))
	return p
}

// ID returns the statement id.
func (p *Pending) ID() string {
	return p.id
}

// Arena returns the arena fragment targets are resolved in.
func (p *Pending) Arena() *node.Arena {
	return p.arena
}

// Store returns the store registered under name.
func (p *Pending) Store(name string) (Store, bool) {
	s, ok := p.stores[name]
	return s, ok
}

// List returns the list of the named store, if any primitive targets it.
func (p *Pending) List(name string) (*List, bool) {
	l, ok := p.lists[name]
	return l, ok
}

// Fragments returns the list of fragment targets, if any.
func (p *Pending) Fragments() (*List, bool) {
	return p.frags, p.frags != nil
}

// Stores returns the names of the touched stores in apply order.
func (p *Pending) Stores() []string {
	return slices.Sorted(maps.Keys(p.lists))
}

// Len returns the number of primitives over all lists after merging.
func (p *Pending) Len() int {
	n := 0
	for _, l := range p.lists {
		n += l.Len()
	}
	if p.frags != nil {
		n += p.frags.Len()
	}
	return n
}

// Register constructs a primitive and registers it for store.
func (p *Pending) Register(store string, kind Kind, target Target, payload Payload) error {
	return p.RegisterFor(store, NewPrimitive(kind, target, payload))
}

// RegisterFor registers prim in the list of the named store, creating the
// list on first use.
//
// Primitives on fragment targets go to the fragment list, which locks no
// store; store may then be empty. Payload nodes are copied into the arena,
// so later edits to the nodes they came from do not reach the payload.
func (p *Pending) RegisterFor(store string, prim *Primitive) error {
	if p.done {
		return newAlreadyFinished(store, "register after the statement finished")
	}
	frag := prim != nil && prim.Target.Kind() == AddrFragment
	s, ok := p.stores[store]
	if !ok && !(frag && store == "") {
		return newUnresolved(store, Target{}, "unknown store %q", store)
	}

	var l *List
	switch {
	case frag:
		if p.frags == nil {
			p.frags = NewList(fragmentStore{}, p.arena)
		}
		l = p.frags
	default:
		l = p.lists[store]
		if l == nil {
			l = NewList(s, p.arena)
			l.gen = p.gens[store]
			p.lists[store] = l
		}
	}

	if prim != nil && len(prim.Payload.Nodes) > 0 {
		payload := prim.Payload
		payload.Nodes = p.arena.CopyAll(node.Expand(payload.Nodes))
		prim = NewPrimitive(prim.Kind, prim.Target, payload)
	}
	if err := l.Register(prim); err != nil {
		return err
	}
	primitivesRegistered.Inc()
	p.logger.Debug("primitive registered",
		slog.String("store", store),
		slog.String("kind", prim.Kind.String()),
		slog.String("target", prim.Target.String()))
	return nil
}

// Discard drops every pending primitive. Nothing was applied, so there is
// nothing to undo; the Pending accepts no further registrations.
func (p *Pending) Discard() {
	p.done = true
	clear(p.lists)
	p.frags = nil
}

// ValidateAndApply checks every touched store and the fragment list and,
// only if all pass, applies the stores in name order, then the fragments.
//
// Validation errors (conflicts, unresolvable or mistyped targets, a store
// changed by another statement since NewPending) leave every store
// untouched. An error while applying is reported as APPLY_FAILURE; edits
// already made are not rolled back. Fragment edits take no store lock. A
// second call returns ALREADY_FINISHED.
func (p *Pending) ValidateAndApply(ctx context.Context) (err error) {
	if p.done {
		return newAlreadyFinished("", "statement already finished")
	}
	p.done = true

	names := p.Stores()
	ctx, span := tracer.Start(ctx, "update.Pending.ValidateAndApply",
		trace.WithAttributes(
			attribute.String("statement", p.id),
			attribute.StringSlice("stores", names),
			attribute.Int("primitives", p.Len()),
		),
	)
	defer span.End()

	start := time.Now()
	outcome := "applied"
	defer func() {
		applyDuration.Observe(time.Since(start).Seconds())
		statementsTotal.WithLabelValues(outcome).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetStatus(codes.Ok, outcome)
		}
	}()

	reject := func(e error) error {
		outcome = "rejected"
		conflictsTotal.WithLabelValues(string(CodeOf(e))).Inc()
		p.logger.Warn("statement rejected", slog.String("error", e.Error()))
		return e
	}
	failed := func(e *UpdateError) error {
		outcome = "failed"
		p.logger.Error("statement failed", slog.String("error", e.Error()))
		return e
	}

	for _, name := range names {
		if err := p.lists[name].Check(); err != nil {
			return reject(err)
		}
	}
	if p.frags != nil {
		if err := p.frags.Check(); err != nil {
			return reject(err)
		}
	}

	journal := make([][]byte, len(names))
	for i, name := range names {
		summary, err := marshalSummary(p.lists[name].Summary())
		if err != nil {
			return failed(newApplyFailure(name, Target{}, err, "cannot encode journal entry"))
		}
		journal[i] = summary
	}

	txns := make([]Txn, 0, len(names))
	abortAll := func() {
		for _, tx := range txns {
			tx.Abort()
		}
	}
	for _, name := range names {
		l := p.lists[name]
		tx, err := l.store.Begin(ctx)
		if err != nil {
			abortAll()
			return failed(newApplyFailure(name, Target{}, err, "cannot acquire store"))
		}
		txns = append(txns, tx)
		if g := tx.Generation(); g != l.gen {
			abortAll()
			return reject(newUnresolved(name, Target{},
				"store changed since the statement began (generation %d, now %d)", l.gen, g))
		}
	}

	for i, name := range names {
		if err := p.lists[name].Apply(txns[i]); err != nil {
			abortAll()
			outcome = "failed"
			p.logger.Error("apply failed", slog.String("store", name), slog.String("error", err.Error()))
			return err
		}
	}

	for i, name := range names {
		tx := txns[i]
		if j, ok := tx.(Journaler); ok {
			j.Journal(p.id, journal[i])
		}
		if err := tx.Commit(ctx); err != nil {
			abortAll()
			var ue *UpdateError
			if !errors.As(err, &ue) {
				ue = newApplyFailure(name, Target{}, err, "commit failed")
			}
			return failed(ue)
		}
	}

	if p.frags != nil {
		if err := p.frags.Apply(nil); err != nil {
			outcome = "failed"
			p.logger.Error("fragment apply failed", slog.String("error", err.Error()))
			return err
		}
	}

	p.logger.Info("statement applied",
		slog.Int("stores", len(names)),
		slog.Int("primitives", p.Len()))
	return nil
}

// Summary describes the pending primitives of every store, and of the
// fragments if any, in apply order. It does not finish the lists.
func (p *Pending) Summary() map[string]any {
	stores := make(map[string]any, len(p.lists))
	for name, l := range p.lists {
		stores[name] = l.Summary()
	}
	out := map[string]any{
		"statement": p.id,
		"stores":    stores,
	}
	if p.frags != nil && p.frags.Len() > 0 {
		out["fragments"] = p.frags.Summary()
	}
	return out
}

// fragmentStore is the Store of a fragment list. It holds no nodes and
// cannot be locked: fragment primitives only edit the arena.
type fragmentStore struct{}

var emptyData = doc.New("")

func (fragmentStore) Name() string { return "" }

func (fragmentStore) Data() *doc.Data { return emptyData }

func (fragmentStore) Begin(context.Context) (Txn, error) {
	return nil, errors.New("fragments have no store transaction")
}
