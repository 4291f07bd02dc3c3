package internal

import (
	"sync"
	"sync/atomic"
)

const managerShards = 32

// workerManager tracks live connection actors so the accept loop can tear
// them all down on shutdown. Gameplay state never lives here; the
// simulation thread keeps its own registry fed by the bridge.
type workerManager struct {
	buckets [managerShards]*sync.Map
	size    atomic.Int64
}

func newWorkerManager() *workerManager {
	m := &workerManager{}

	for i := range m.buckets {
		m.buckets[i] = &sync.Map{}
	}

	return m
}

func (m *workerManager) Get(wid uint64) *Worker {
	if w, ok := m.bucket(wid).Load(wid); ok {
		return w.(*Worker)
	}

	return nil
}

func (m *workerManager) Put(w *Worker) {
	if _, loaded := m.bucket(w.WID()).LoadOrStore(w.WID(), w); !loaded {
		m.size.Add(1)
	}
}

func (m *workerManager) Del(wid uint64) {
	if _, loaded := m.bucket(wid).LoadAndDelete(wid); loaded {
		m.size.Add(-1)
	}
}

func (m *workerManager) Size() int64 {
	return m.size.Load()
}

func (m *workerManager) Walk(f func(w *Worker) bool) {
	for _, b := range m.buckets {
		continued := true

		b.Range(func(_, value any) bool {
			w, ok := value.(*Worker)
			if !ok {
				return true
			}

			continued = f(w)

			return continued
		})

		if !continued {
			return
		}
	}
}

func (m *workerManager) bucket(wid uint64) *sync.Map {
	return m.buckets[wyhash(wid)&(managerShards-1)]
}

// wyhash mixes a 64-bit key so sequential connection ids spread across shards.
func wyhash(key uint64) uint64 {
	x := key
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33

	return x
}
