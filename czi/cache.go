package czi

import (
	"container/list"
	"context"
	"errors"
	"runtime"
	"sync"
	"weak"
)

var errDecodePanicked = errors.New("czi: tile decode panicked")

// DecodeFunc produces a decoded tile. ok is false when the buffer is a
// substitute for a failed decode; such buffers are never cached.
type DecodeFunc func() (buf []byte, ok bool)

// CacheStats reports cache activity.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Decodes   int64
	Evictions int64
	Revived   int64
	Entries   int
	Used      int64
	Limit     int64
}

type tileBuffer struct {
	data []byte
}

type cacheItem struct {
	id  int
	buf *tileBuffer
}

type call struct {
	done chan struct{}
	buf  []byte
	err  error
}

// TileCache holds decoded tiles keyed by entry ID. It is a strict LRU
// bounded by total bytes. Evicted tiles stay reachable through weak
// pointers until the garbage collector reclaims them. At most one decode
// per ID runs at a time; concurrent requests for the same ID wait for it.
type TileCache struct {
	mu    sync.Mutex
	limit int64
	used  int64
	lru   *list.List // front is most recent
	items map[int]*list.Element
	weak  map[int]weak.Pointer[tileBuffer]
	calls map[int]*call
	stats CacheStats
}

// NewTileCache returns a cache holding at most limit bytes. A limit of 0
// disables retention but keeps request coalescing.
func NewTileCache(limit int64) *TileCache {
	return &TileCache{
		limit: max(limit, 0),
		lru:   list.New(),
		items: make(map[int]*list.Element),
		weak:  make(map[int]weak.Pointer[tileBuffer]),
		calls: make(map[int]*call),
	}
}

// GetOrDecode returns the cached tile for id, or runs decode. If another
// caller is already decoding id, GetOrDecode waits for that result instead.
// A waiter whose ctx ends returns ctx.Err(); the decode itself always runs
// to completion. The returned buffer is shared and must not be modified.
func (c *TileCache) GetOrDecode(ctx context.Context, id int, decode DecodeFunc) ([]byte, error) {
	c.mu.Lock()
	if el, ok := c.items[id]; ok {
		c.lru.MoveToFront(el)
		c.stats.Hits++
		buf := el.Value.(*cacheItem).buf.data
		c.mu.Unlock()
		return buf, nil
	}
	if wp, ok := c.weak[id]; ok {
		delete(c.weak, id)
		if tb := wp.Value(); tb != nil {
			c.stats.Hits++
			c.stats.Revived++
			c.insertLocked(id, tb)
			c.mu.Unlock()
			return tb.data, nil
		}
	}
	if cl, ok := c.calls[id]; ok {
		c.stats.Hits++
		c.mu.Unlock()
		select {
		case <-cl.done:
			return cl.buf, cl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	cl := &call{done: make(chan struct{})}
	c.calls[id] = cl
	c.stats.Misses++
	c.mu.Unlock()

	c.run(id, cl, decode)
	return cl.buf, cl.err
}

func (c *TileCache) run(id int, cl *call, decode DecodeFunc) {
	ok := false
	defer func() {
		if r := recover(); r != nil {
			cl.buf, cl.err = nil, errDecodePanicked
			c.finish(id, cl, false)
			panic(r)
		}
	}()
	cl.buf, ok = decode()
	c.finish(id, cl, ok)
}

func (c *TileCache) finish(id int, cl *call, keep bool) {
	c.mu.Lock()
	delete(c.calls, id)
	c.stats.Decodes++
	if keep {
		c.insertLocked(id, &tileBuffer{data: cl.buf})
	}
	c.mu.Unlock()
	close(cl.done)
}

// insertLocked makes tb the most recent item, then evicts from the tail
// until the byte total is within the limit. Items larger than the limit
// are only held weakly.
func (c *TileCache) insertLocked(id int, tb *tileBuffer) {
	cost := int64(len(tb.data))
	if cost > c.limit {
		c.demoteLocked(id, tb)
		return
	}
	c.items[id] = c.lru.PushFront(&cacheItem{id: id, buf: tb})
	c.used += cost
	for c.used > c.limit {
		el := c.lru.Back()
		it := el.Value.(*cacheItem)
		c.lru.Remove(el)
		delete(c.items, it.id)
		c.used -= int64(len(it.buf.data))
		c.stats.Evictions++
		c.demoteLocked(it.id, it.buf)
	}
}

func (c *TileCache) demoteLocked(id int, tb *tileBuffer) {
	c.weak[id] = weak.Make(tb)
	runtime.AddCleanup(tb, c.dropWeak, id)
}

// dropWeak forgets a weak entry once its buffer has been collected.
func (c *TileCache) dropWeak(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wp, ok := c.weak[id]; ok && wp.Value() == nil {
		delete(c.weak, id)
	}
}

// Contains reports whether id is held strongly.
func (c *TileCache) Contains(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[id]
	return ok
}

// Used returns the bytes held strongly.
func (c *TileCache) Used() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Stats returns a snapshot of cache counters.
func (c *TileCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.lru.Len()
	s.Used = c.used
	s.Limit = c.limit
	return s
}

// Purge drops every cached tile. Decodes in flight are not affected.
func (c *TileCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Init()
	clear(c.items)
	clear(c.weak)
	c.used = 0
}
