package czi

import (
	"sync"
	"sync/atomic"
)

// payloadSizes are the size classes for pooled payload buffers. Compressed
// tiles are usually well under a megabyte.
var payloadSizes = []int{
	16 << 10,
	64 << 10,
	256 << 10,
	1 << 20,
	4 << 20,
	16 << 20,
}

// PoolStats reports buffer pool activity.
type PoolStats struct {
	Gets, Hits, Misses, Refused int64
	InUse                       int64
	Limit                       int64
}

// BufferPool recycles buffers for compressed payloads between reads.
// With a limit set, Get refuses requests that would push the bytes
// currently lent out past it.
type BufferPool struct {
	pools   []*sync.Pool
	inUse   atomic.Int64
	limit   atomic.Int64
	gets    atomic.Int64
	hits    atomic.Int64
	misses  atomic.Int64
	refused atomic.Int64
}

// NewBufferPool returns a pool lending at most limit bytes; 0 is unlimited.
func NewBufferPool(limit int64) *BufferPool {
	p := &BufferPool{pools: make([]*sync.Pool, len(payloadSizes))}
	p.limit.Store(limit)
	for i := range payloadSizes {
		p.pools[i] = &sync.Pool{}
	}
	return p
}

func sizeClass(size int) int {
	for i, s := range payloadSizes {
		if size <= s {
			return i
		}
	}
	return -1
}

// Get returns a buffer of length size, or nil when the limit would be
// exceeded. Buffers must be handed back with Put.
func (p *BufferPool) Get(size int) []byte {
	p.gets.Add(1)
	class := sizeClass(size)
	capacity := size
	if class >= 0 {
		capacity = payloadSizes[class]
	}
	if limit := p.limit.Load(); limit > 0 && p.inUse.Load()+int64(capacity) > limit {
		p.refused.Add(1)
		return nil
	}
	p.inUse.Add(int64(capacity))

	if class >= 0 {
		if v := p.pools[class].Get(); v != nil {
			p.hits.Add(1)
			return (*v.(*[]byte))[:size]
		}
	}
	p.misses.Add(1)
	return make([]byte, size, capacity)
}

// Put returns a buffer obtained from Get.
func (p *BufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	p.inUse.Add(-int64(cap(buf)))
	class := sizeClass(cap(buf))
	if class < 0 || cap(buf) != payloadSizes[class] {
		return
	}
	buf = buf[:cap(buf)]
	p.pools[class].Put(&buf)
}

// Stats returns a snapshot of pool counters.
func (p *BufferPool) Stats() PoolStats {
	return PoolStats{
		Gets:    p.gets.Load(),
		Hits:    p.hits.Load(),
		Misses:  p.misses.Load(),
		Refused: p.refused.Load(),
		InUse:   p.inUse.Load(),
		Limit:   p.limit.Load(),
	}
}
