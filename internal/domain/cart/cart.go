// Package cart holds the shopper's cart: an ordered productId → quantity
// mapping that notifies subscribers after every change.
package cart

import (
	"slices"
	"sync"

	"github.com/go-faster/errors"
)

// Sentinel errors for cart mutations.
var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrEmptyProductID  = errors.New("product id required")
)

// Entry is one product in the cart.
type Entry struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Subscriber receives the cart contents after a mutation.
type Subscriber func(entries []Entry)

type subscription struct {
	id uint64
	fn Subscriber
}

// Store is a concurrency-safe cart. Subscribers run synchronously on the
// mutating goroutine, after the internal lock is released, in subscription
// order.
type Store struct {
	mu      sync.Mutex
	entries []Entry
	subs    []subscription
	nextSub uint64
}

// New returns a cart holding entries. Entries with a quantity below 1 or an
// empty product id are dropped and duplicates are folded together.
func New(entries ...Entry) *Store {
	s := &Store{}
	for _, e := range entries {
		if e.ProductID == "" || e.Quantity < 1 {
			continue
		}
		s.add(e.ProductID, e.Quantity)
	}
	return s
}

// Add puts qty units of productID into the cart, increasing the quantity of
// an existing entry.
func (s *Store) Add(productID string, qty int) error {
	if productID == "" {
		return ErrEmptyProductID
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	s.add(productID, qty)
	s.publishLocked()
	return nil
}

// Remove deletes productID from the cart. Removing an absent product is a
// no-op and does not notify subscribers.
func (s *Store) Remove(productID string) {
	s.mu.Lock()
	i := s.index(productID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	s.publishLocked()
}

// SetQuantity replaces the quantity of productID. A quantity below 1
// removes the entry; setting an absent product adds it.
func (s *Store) SetQuantity(productID string, qty int) {
	if qty < 1 {
		s.Remove(productID)
		return
	}
	if productID == "" {
		return
	}

	s.mu.Lock()
	if i := s.index(productID); i >= 0 {
		s.entries[i].Quantity = qty
	} else {
		s.entries = append(s.entries, Entry{ProductID: productID, Quantity: qty})
	}
	s.publishLocked()
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.publishLocked()
}

// List returns a copy of the entries in insertion order.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.entries)
}

// Len reports the number of distinct products in the cart.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.subs = slices.DeleteFunc(s.subs, func(sub subscription) bool { return sub.id == id })
		})
	}
}

func (s *Store) add(productID string, qty int) {
	if i := s.index(productID); i >= 0 {
		s.entries[i].Quantity += qty
		return
	}
	s.entries = append(s.entries, Entry{ProductID: productID, Quantity: qty})
}

func (s *Store) index(productID string) int {
	return slices.IndexFunc(s.entries, func(e Entry) bool { return e.ProductID == productID })
}

// publishLocked must be called with mu held. It releases mu before running
// subscribers.
func (s *Store) publishLocked() {
	subs := slices.Clone(s.subs)
	snapshot := clone(s.entries)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(clone(snapshot))
	}
}

// clone never returns nil so empty carts encode as [].
func clone(entries []Entry) []Entry {
	return append(make([]Entry, 0, len(entries)), entries...)
}
