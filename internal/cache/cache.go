// Package cache holds the process-local working set of payment records.
//
// The cache mirrors active rows of the record store for fast status
// mutation and list rendering. It is never authoritative: Refresh always
// reads through to the store and repopulates the entry, so the "already
// agreed" check cannot be answered from stale memory.
//
// Bounds:
//   - MaxEntries caps the number of cached records. When exceeded, the least
//     recently touched entries are evicted first.
//   - MaxLastOpened caps how many recipients keep a "last opened record"
//     pointer; the oldest pointers are dropped first.
//
// A single mutex guards every structure. Store calls are made outside the
// lock so a slow database never blocks unrelated recipients.
package cache

import (
	"container/list"
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
)

// ErrNotOwned is returned when a record exists but belongs to another
// recipient.
var ErrNotOwned = errors.New("record belongs to another recipient")

var cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "payroll_cache_entries",
	Help: "Number of payment records held in the in-memory cache.",
})

func init() {
	prometheus.MustRegister(cacheEntries)
}

// Source is the read side of the record store the cache falls back to.
type Source interface {
	FindByID(ctx context.Context, id uint) (*domain.PaymentRecord, error)
	ListActiveBatches(ctx context.Context) ([]string, error)
}

// Entry is a cached record plus its resolved content row, when known.
type Entry struct {
	Record domain.PaymentRecord
	Row    domain.Row
}

type item struct {
	entry Entry
}

type opened struct {
	recipientID int64
	recordID    uint
}

// Options configures the cache bounds. Zero values fall back to defaults.
type Options struct {
	MaxEntries    int
	MaxLastOpened int
}

// Cache is the RecordCache. Safe for concurrent use.
type Cache struct {
	src Source

	mu            sync.Mutex
	maxEntries    int
	maxLastOpened int
	order         *list.List // front = most recently touched *item
	byID          map[uint]*list.Element
	openedOrder   *list.List // front = most recently set opened
	lastOpened    map[int64]*list.Element
}

// New returns an empty cache reading through to src.
func New(src Source, opt Options) *Cache {
	if opt.MaxEntries <= 0 {
		opt.MaxEntries = 50000
	}
	if opt.MaxLastOpened <= 0 {
		opt.MaxLastOpened = 20000
	}
	return &Cache{
		src:           src,
		maxEntries:    opt.MaxEntries,
		maxLastOpened: opt.MaxLastOpened,
		order:         list.New(),
		byID:          make(map[uint]*list.Element),
		openedOrder:   list.New(),
		lastOpened:    make(map[int64]*list.Element),
	}
}

// Peek returns a cached entry without touching the store or LRU order.
func (c *Cache) Peek(id uint) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byID[id]; ok {
		return el.Value.(*item).entry, true
	}
	return Entry{}, false
}

// Refresh reloads id from the store on behalf of recipientID. A record that
// no longer exists is dropped from the cache and the store's error is
// returned; a record owned by someone else yields ErrNotOwned. A cached row is
// kept across refreshes.
func (c *Cache) Refresh(ctx context.Context, recipientID int64, id uint) (Entry, error) {
	rec, err := c.src.FindByID(ctx, id)
	if err != nil {
		c.Drop(id)
		return Entry{}, err
	}
	if rec.RecipientID != recipientID {
		return Entry{}, ErrNotOwned
	}
	return c.Put(*rec, nil), nil
}

// Drop removes id from the cache.
func (c *Cache) Drop(id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byID[id]; ok {
		c.removeLocked(el)
	}
}

// Put inserts or replaces the record. A nil row keeps the cached one.
func (c *Cache) Put(rec domain.PaymentRecord, row domain.Row) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byID[rec.ID]; ok {
		it := el.Value.(*item)
		if row == nil {
			row = it.entry.Row
		}
		it.entry = Entry{Record: rec, Row: row}
		c.order.MoveToFront(el)
		return it.entry
	}
	it := &item{entry: Entry{Record: rec, Row: row}}
	c.byID[rec.ID] = c.order.PushFront(it)
	c.evictLocked()
	cacheEntries.Set(float64(len(c.byID)))
	return it.entry
}

// SetStatus updates the cached status and reason of id. It reports false when
// id is not cached.
func (c *Cache) SetStatus(id uint, status domain.Status, reason *string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.byID[id]
	if !ok {
		return false
	}
	it := el.Value.(*item)
	it.entry.Record.Status = status
	it.entry.Record.DisagreeReason = reason
	c.order.MoveToFront(el)
	return true
}

// SetLastOpened remembers the record a recipient opened most recently.
func (c *Cache) SetLastOpened(recipientID int64, id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.lastOpened[recipientID]; ok {
		el.Value.(*opened).recordID = id
		c.openedOrder.MoveToFront(el)
		return
	}
	c.lastOpened[recipientID] = c.openedOrder.PushFront(&opened{recipientID: recipientID, recordID: id})
	for c.openedOrder.Len() > c.maxLastOpened {
		back := c.openedOrder.Back()
		c.openedOrder.Remove(back)
		delete(c.lastOpened, back.Value.(*opened).recipientID)
	}
}

// LastOpened returns the recipient's last opened record id.
func (c *Cache) LastOpened(recipientID int64) (uint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.lastOpened[recipientID]; ok {
		return el.Value.(*opened).recordID, true
	}
	return 0, false
}

// DropBatch removes every cached record of batchFile and returns how many
// were removed.
func (c *Cache) DropBatch(batchFile string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, el := range c.byID {
		if el.Value.(*item).entry.Record.BatchFile == batchFile {
			c.removeLocked(el)
			n++
		}
	}
	return n
}

// Reconcile drops cached records whose batch is no longer active in the
// store. It returns the number of records dropped.
func (c *Cache) Reconcile(ctx context.Context) (int, error) {
	active, err := c.src.ListActiveBatches(ctx)
	if err != nil {
		return 0, err
	}
	keep := make(map[string]struct{}, len(active))
	for _, b := range active {
		keep[b] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, el := range c.byID {
		if _, ok := keep[el.Value.(*item).entry.Record.BatchFile]; !ok {
			c.removeLocked(el)
			n++
		}
	}
	return n, nil
}

// Enforce applies both bounds. Put already enforces MaxEntries; this is for
// the periodic cleanup after bounds were lowered.
func (c *Cache) Enforce() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked()
	for c.openedOrder.Len() > c.maxLastOpened {
		back := c.openedOrder.Back()
		c.openedOrder.Remove(back)
		delete(c.lastOpened, back.Value.(*opened).recipientID)
	}
	cacheEntries.Set(float64(len(c.byID)))
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

func (c *Cache) evictLocked() {
	for c.order.Len() > c.maxEntries {
		c.removeLocked(c.order.Back())
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	id := el.Value.(*item).entry.Record.ID
	c.order.Remove(el)
	delete(c.byID, id)
	cacheEntries.Set(float64(len(c.byID)))
}
