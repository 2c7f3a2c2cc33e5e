package cache

// QueueConfig configures the prefetch issue queue.
type QueueConfig struct {
	// Size is the number of pending requests. Default: 32.
	Size int `json:"size" yaml:"size"`
	// IssueWidth is the number of requests issued per demand access.
	// Default: 4.
	IssueWidth int `json:"issue_width" yaml:"issue_width"`
	// OnAccess trains the prefetcher on every access instead of only on
	// misses and first hits to prefetched blocks.
	OnAccess bool `json:"on_access" yaml:"on_access"`
}

// DefaultQueueConfig returns the default queue configuration.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Size:       32,
		IssueWidth: 4,
	}
}

// Request is a pending prefetch.
type Request struct {
	Addr     uint64
	Priority int32
}

// PrefetchQueue holds prefetch requests waiting to be issued. Requests are
// ordered by priority, newest first within a priority, so the freshest
// prediction issues first. An address is queued at most once. When full, the
// oldest lowest-priority request is dropped.
type PrefetchQueue struct {
	size       int
	issueWidth int
	entries    []Request
	pending    map[uint64]struct{}
}

// NewPrefetchQueue creates a queue. Non-positive sizes fall back to defaults.
func NewPrefetchQueue(config QueueConfig) *PrefetchQueue {
	defaults := DefaultQueueConfig()
	if config.Size <= 0 {
		config.Size = defaults.Size
	}
	if config.IssueWidth <= 0 {
		config.IssueWidth = defaults.IssueWidth
	}

	return &PrefetchQueue{
		size:       config.Size,
		issueWidth: config.IssueWidth,
		entries:    make([]Request, 0, config.Size),
		pending:    make(map[uint64]struct{}, config.Size),
	}
}

// Len returns the number of pending requests.
func (q *PrefetchQueue) Len() int {
	return len(q.entries)
}

// IssueWidth returns the per-access issue budget.
func (q *PrefetchQueue) IssueWidth() int {
	return q.issueWidth
}

// Contains reports whether addr is pending.
func (q *PrefetchQueue) Contains(addr uint64) bool {
	_, ok := q.pending[addr]
	return ok
}

// Push queues req. It reports whether req was queued and whether an older
// request was dropped to make room.
func (q *PrefetchQueue) Push(req Request) (queued, dropped bool) {
	if q.Contains(req.Addr) {
		return false, false
	}

	if len(q.entries) >= q.size {
		// The tail holds the oldest lowest-priority request.
		victim := q.entries[len(q.entries)-1]
		if victim.Priority > req.Priority {
			return false, true
		}
		q.entries = q.entries[:len(q.entries)-1]
		delete(q.pending, victim.Addr)
		dropped = true
	}

	// Newest first within a priority so that the tail stays the oldest.
	pos := len(q.entries)
	for i, e := range q.entries {
		if e.Priority <= req.Priority {
			pos = i
			break
		}
	}
	q.entries = append(q.entries, Request{})
	copy(q.entries[pos+1:], q.entries[pos:])
	q.entries[pos] = req
	q.pending[req.Addr] = struct{}{}

	return true, dropped
}

// Pop removes and returns up to n requests, highest priority first and
// newest first within a priority.
func (q *PrefetchQueue) Pop(n int) []Request {
	n = min(n, len(q.entries))
	if n <= 0 {
		return nil
	}

	out := make([]Request, n)
	copy(out, q.entries[:n])
	q.entries = append(q.entries[:0], q.entries[n:]...)
	for _, r := range out {
		delete(q.pending, r.Addr)
	}
	return out
}

// Reset drops every pending request.
func (q *PrefetchQueue) Reset() {
	q.entries = q.entries[:0]
	clear(q.pending)
}
