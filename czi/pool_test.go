package czi

import "testing"

func TestBufferPoolGet(t *testing.T) {
	pool := NewBufferPool(0)

	tests := []int{100, 16 << 10, 20000, 1 << 20, 32 << 20}
	for _, size := range tests {
		buf := pool.Get(size)
		if len(buf) != size {
			t.Errorf("Get(%d) returned len=%d", size, len(buf))
		}
		pool.Put(buf)
	}
	if st := pool.Stats(); st.InUse != 0 || st.Gets != int64(len(tests)) {
		t.Errorf("stats = %+v, want nothing in use", st)
	}
}

func TestBufferPoolLimit(t *testing.T) {
	pool := NewBufferPool(64 << 10)

	a := pool.Get(60 << 10)
	if a == nil {
		t.Fatal("Get within limit returned nil")
	}
	if b := pool.Get(1 << 10); b != nil {
		t.Error("Get past limit returned a buffer")
	}
	pool.Put(a)
	if b := pool.Get(1 << 10); b == nil {
		t.Error("Get after Put returned nil")
	}
	if st := pool.Stats(); st.Refused != 1 {
		t.Errorf("Refused = %d, want 1", st.Refused)
	}
}
