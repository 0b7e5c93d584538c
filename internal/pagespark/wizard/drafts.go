package wizard

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const defaultDraftTTL = 2 * time.Hour

// Drafts keeps in-progress controllers for the web console, keyed by a ULID
// stored in the visitor's session.
type Drafts struct {
	factory func() *Controller
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	items map[string]*draft
}

type draft struct {
	controller *Controller
	touched    time.Time
}

// DraftsOption customises a Drafts store.
type DraftsOption func(*Drafts)

// WithTTL sets how long an untouched draft survives.
func WithTTL(ttl time.Duration) DraftsOption {
	return func(d *Drafts) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) DraftsOption {
	return func(d *Drafts) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDrafts returns an empty store that builds controllers with factory.
func NewDrafts(factory func() *Controller, opts ...DraftsOption) *Drafts {
	d := &Drafts{
		factory: factory,
		ttl:     defaultDraftTTL,
		now:     time.Now,
		items:   make(map[string]*draft),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Create starts a new draft.
func (d *Drafts) Create() (string, *Controller) {
	id := ulid.Make().String()
	c := d.factory()
	d.mu.Lock()
	d.items[id] = &draft{controller: c, touched: d.now()}
	d.mu.Unlock()
	return id, c
}

// Get returns the draft for id and refreshes its expiry.
func (d *Drafts) Get(id string) (*Controller, bool) {
	if id == "" {
		return nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	item, ok := d.items[id]
	if !ok {
		return nil, false
	}
	if d.now().Sub(item.touched) > d.ttl {
		return nil, false
	}
	item.touched = d.now()
	return item.controller, true
}

// Ensure returns the draft for id, creating a fresh one when it is missing or expired.
func (d *Drafts) Ensure(id string) (string, *Controller, bool) {
	if c, ok := d.Get(id); ok {
		return id, c, false
	}
	newID, c := d.Create()
	return newID, c, true
}

// Delete drops the draft and stops its background work.
func (d *Drafts) Delete(id string) {
	d.mu.Lock()
	item, ok := d.items[id]
	delete(d.items, id)
	d.mu.Unlock()
	if ok {
		item.controller.Close()
	}
}

// Len reports the number of stored drafts, expired ones included.
func (d *Drafts) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Sweep removes expired drafts and returns how many were dropped.
func (d *Drafts) Sweep() int {
	now := d.now()
	var expired []*Controller
	d.mu.Lock()
	for id, item := range d.items {
		if now.Sub(item.touched) > d.ttl {
			expired = append(expired, item.controller)
			delete(d.items, id)
		}
	}
	d.mu.Unlock()
	for _, c := range expired {
		c.Close()
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then closes all drafts.
func (d *Drafts) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.Close()
			return
		case <-ticker.C:
			d.Sweep()
		}
	}
}

// Close drops every draft.
func (d *Drafts) Close() {
	d.mu.Lock()
	items := d.items
	d.items = make(map[string]*draft)
	d.mu.Unlock()
	for _, item := range items {
		item.controller.Close()
	}
}
