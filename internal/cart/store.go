package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/riyad899/Jtech-sub000/internal/storage"
)

// Storage persists one encoded cart. Load returns storage.ErrNotFound when
// nothing has been saved yet.
type Storage interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Store owns the lines of one cart. All mutations take the store lock for
// the whole read-merge-write, so concurrent callers never lose an update.
// Subscribers run after the lock is released, in mutation order per caller.
type Store struct {
	mu      sync.Mutex
	lines   map[string]*Line
	order   []string
	version uint64

	subMu   sync.RWMutex
	subs    map[int]func(Change)
	nextSub int

	writer *writer
	log    *slog.Logger

	loadTimeout  time.Duration
	writeTimeout time.Duration
}

type Option func(*Store)

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

func WithTimeouts(load, write time.Duration) Option {
	return func(s *Store) {
		s.loadTimeout = load
		s.writeTimeout = write
	}
}

// New returns an empty, memory-only store.
func New(opts ...Option) *Store {
	s := &Store{
		lines:        make(map[string]*Line),
		subs:         make(map[int]func(Change)),
		log:          slog.Default(),
		loadTimeout:  2 * time.Second,
		writeTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns a store rehydrated from st that writes every mutation back to
// it in the background. Persistence is best-effort: if loading fails the
// store starts empty and stays memory-only.
func Open(ctx context.Context, st Storage, opts ...Option) *Store {
	s := New(opts...)
	if st == nil {
		return s
	}

	loadCtx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()

	data, err := st.Load(loadCtx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		s.log.Warn("cart load failed, continuing in memory", "error", err)
		return s
	default:
		lines, errDecode := Decode(data)
		if errDecode != nil {
			s.log.Warn("cart decode failed, starting empty", "error", errDecode)
		}
		for i := range lines {
			l := lines[i]
			s.lines[l.ProductID] = &l
			s.order = append(s.order, l.ProductID)
		}
	}

	s.writer = newWriter(st, s.writeTimeout, s.log)
	return s
}

// AddItem adds quantity units of item. An existing line keeps its original
// price snapshot and has its quantity increased.
func (s *Store) AddItem(item Item, quantity int) error {
	if err := item.validate(); err != nil {
		return err
	}
	if quantity < 1 || quantity > MaxLineQuantity {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	s.mu.Lock()
	if l, ok := s.lines[item.ProductID]; ok {
		if l.Quantity > MaxLineQuantity-quantity {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s would exceed %d", ErrInvalidQuantity, item.ProductID, MaxLineQuantity)
		}
		l.Quantity += quantity
	} else {
		s.lines[item.ProductID] = &Line{
			ProductID: item.ProductID,
			UnitPrice: item.UnitPrice,
			Quantity:  quantity,
			Display:   item.Display,
		}
		s.order = append(s.order, item.ProductID)
	}
	c := s.commitLocked(OpAdd, item.ProductID)
	s.mu.Unlock()

	s.publish(c)
	return nil
}

// RemoveItem drops the line for productID. Removing an absent product is a no-op.
func (s *Store) RemoveItem(productID string) {
	s.mu.Lock()
	if !s.removeLocked(productID) {
		s.mu.Unlock()
		return
	}
	c := s.commitLocked(OpRemove, productID)
	s.mu.Unlock()

	s.publish(c)
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero or
// less removes the line.
func (s *Store) UpdateQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		s.RemoveItem(productID)
		return nil
	}

	if quantity > MaxLineQuantity {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	s.mu.Lock()
	l, ok := s.lines[productID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLineNotFound, productID)
	}
	if l.Quantity == quantity {
		s.mu.Unlock()
		return nil
	}
	l.Quantity = quantity
	c := s.commitLocked(OpUpdate, productID)
	s.mu.Unlock()

	s.publish(c)
	return nil
}

func (s *Store) IsInCart(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lines[productID]
	return ok
}

// Totals is recomputed from the current lines on every call.
func (s *Store) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeTotals(s.snapshotLocked())
}

// Lines returns a copy of the lines in the order they were first added.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Version increases by one with every applied mutation.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Clear removes every line.
func (s *Store) Clear() {
	s.mu.Lock()
	if len(s.lines) == 0 {
		s.mu.Unlock()
		return
	}
	s.lines = make(map[string]*Line)
	s.order = nil
	c := s.commitLocked(OpClear, "")
	s.mu.Unlock()

	s.publish(c)
}

// RemoveLines takes the given quantities out of the cart, deleting lines that
// reach zero. Units added after lines were read stay in the cart.
func (s *Store) RemoveLines(lines []Line) {
	s.mu.Lock()
	changed := false
	for _, taken := range lines {
		l, ok := s.lines[taken.ProductID]
		if !ok || taken.Quantity < 1 {
			continue
		}
		changed = true
		if l.Quantity > taken.Quantity {
			l.Quantity -= taken.Quantity
			continue
		}
		s.removeLocked(taken.ProductID)
	}
	if !changed {
		s.mu.Unlock()
		return
	}
	c := s.commitLocked(OpCheckout, "")
	s.mu.Unlock()

	s.publish(c)
}

// Subscribe registers fn for change notifications. The returned func
// unregisters it.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Persistent reports whether mutations are still being written to storage.
func (s *Store) Persistent() bool {
	return s.writer != nil && !s.writer.failed()
}

// Close flushes the pending write, if any, and stops the writer.
func (s *Store) Close() {
	if s.writer != nil {
		s.writer.close()
	}
}

func (s *Store) removeLocked(productID string) bool {
	if _, ok := s.lines[productID]; !ok {
		return false
	}
	delete(s.lines, productID)
	for i, id := range s.order {
		if id == productID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Store) snapshotLocked() []Line {
	lines := make([]Line, 0, len(s.order))
	for _, id := range s.order {
		lines = append(lines, *s.lines[id])
	}
	return lines
}

func (s *Store) commitLocked(op Op, productID string) Change {
	s.version++
	lines := s.snapshotLocked()
	return Change{
		Op:        op,
		ProductID: productID,
		Version:   s.version,
		Lines:     lines,
		Totals:    ComputeTotals(lines),
	}
}

func (s *Store) publish(c Change) {
	if s.writer != nil {
		data, err := Encode(c.Lines)
		if err != nil {
			s.log.Warn("cart encode failed", "error", err)
		} else {
			s.writer.schedule(c.Version, data)
		}
	}

	s.subMu.RLock()
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(c)
	}
}
