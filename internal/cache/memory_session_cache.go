package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"chatsurvey/internal/model"
)

const (
	defaultTTL         = 30 * time.Minute
	defaultMaxSessions = 4096
)

// MemorySessionCache is an in-process LRU with idle expiry. Front of the
// list is the most recently used entry.
type MemorySessionCache struct {
	mu sync.Mutex

	ttl         time.Duration
	maxSessions int
	now         func() time.Time

	lru *list.List
	m   map[string]*list.Element
}

type entry struct {
	session  *model.RuntimeSession
	lastUsed time.Time
}

// MemoryOption configures a MemorySessionCache
type MemoryOption func(*MemorySessionCache)

// WithTTL sets the idle expiry; zero disables expiry
func WithTTL(ttl time.Duration) MemoryOption {
	return func(c *MemorySessionCache) {
		if ttl < 0 {
			ttl = 0
		}
		c.ttl = ttl
	}
}

// WithMaxSessions bounds the entry count; zero disables the bound
func WithMaxSessions(n int) MemoryOption {
	return func(c *MemorySessionCache) {
		if n < 0 {
			n = 0
		}
		c.maxSessions = n
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemorySessionCache) {
		c.now = now
	}
}

// NewMemorySessionCache creates an empty cache
func NewMemorySessionCache(opts ...MemoryOption) *MemorySessionCache {
	c := &MemorySessionCache{
		ttl:         defaultTTL,
		maxSessions: defaultMaxSessions,
		now:         time.Now,
		lru:         list.New(),
		m:           map[string]*list.Element{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached session. Callers must not mutate it in place.
func (c *MemorySessionCache) Get(_ context.Context, id string) (*model.RuntimeSession, error) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpiredLocked(now)

	e := c.m[id]
	if e == nil {
		return nil, nil
	}
	it := e.Value.(*entry)
	it.lastUsed = now
	c.lru.MoveToFront(e)
	return it.session, nil
}

func (c *MemorySessionCache) Set(_ context.Context, session *model.RuntimeSession) error {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpiredLocked(now)

	if e := c.m[session.SessionID]; e != nil {
		it := e.Value.(*entry)
		it.session = session
		it.lastUsed = now
		c.lru.MoveToFront(e)
		return nil
	}
	c.m[session.SessionID] = c.lru.PushFront(&entry{session: session, lastUsed: now})
	c.evictOverLimitLocked()
	return nil
}

func (c *MemorySessionCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.m[id]; e != nil {
		c.deleteElemLocked(e)
	}
	return nil
}

// Len reports the number of live entries
func (c *MemorySessionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *MemorySessionCache) evictExpiredLocked(now time.Time) {
	if c.ttl <= 0 {
		return
	}
	for e := c.lru.Back(); e != nil; {
		prev := e.Prev()
		if now.Sub(e.Value.(*entry).lastUsed) <= c.ttl {
			break
		}
		c.deleteElemLocked(e)
		e = prev
	}
}

func (c *MemorySessionCache) evictOverLimitLocked() {
	if c.maxSessions <= 0 {
		return
	}
	for c.lru.Len() > c.maxSessions {
		c.deleteElemLocked(c.lru.Back())
	}
}

func (c *MemorySessionCache) deleteElemLocked(e *list.Element) {
	delete(c.m, e.Value.(*entry).session.SessionID)
	c.lru.Remove(e)
}
