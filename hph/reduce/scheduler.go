package reduce

import (
	"runtime"
	"sync"
)

// The process-wide scheduler is created lazily by the first AcquireScheduler
// call and dropped when the last handle is released. Its limit is the
// smallest thread count requested by any live handle, so one engine asking
// for fewer workers caps parallelism for every engine in the process.
var (
	schedulerMu sync.Mutex
	shared      *scheduler
)

type scheduler struct {
	requests map[*Handle]int
	limit    int
}

func (s *scheduler) recompute() {
	s.limit = 0
	for _, threads := range s.requests {
		if s.limit == 0 || threads < s.limit {
			s.limit = threads
		}
	}
}

// Handle is one reference to the process-wide scheduler.
type Handle struct {
	threads  int
	released bool
}

// DefaultThreads is the thread count used when a caller asks for <= 0.
func DefaultThreads() int {
	return runtime.NumCPU()
}

// AcquireScheduler registers a reference to the shared scheduler, creating it
// if needed. threads <= 0 requests DefaultThreads().
func AcquireScheduler(threads int) *Handle {
	if threads <= 0 {
		threads = DefaultThreads()
	}

	schedulerMu.Lock()
	defer schedulerMu.Unlock()

	if shared == nil {
		shared = &scheduler{requests: make(map[*Handle]int)}
	}
	h := &Handle{threads: threads}
	shared.requests[h] = threads
	shared.recompute()
	return h
}

// Threads returns the thread count this handle requested.
func (h *Handle) Threads() int {
	return h.threads
}

// Limit returns the number of workers allowed to run concurrently, always >= 1.
// A released handle falls back to its own thread count.
func (h *Handle) Limit() int {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()

	if h.released || shared == nil {
		return h.threads
	}
	return max(shared.limit, 1)
}

// Release drops this reference. Releasing twice is a no-op.
func (h *Handle) Release() {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()

	if h.released || shared == nil {
		h.released = true
		return
	}
	h.released = true
	delete(shared.requests, h)
	if len(shared.requests) == 0 {
		shared = nil
		return
	}
	shared.recompute()
}

// ActiveHandles returns the number of live references to the shared
// scheduler; 0 means the scheduler does not exist.
func ActiveHandles() int {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()

	if shared == nil {
		return 0
	}
	return len(shared.requests)
}
