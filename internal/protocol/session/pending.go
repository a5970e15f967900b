package session

import (
	"net"
	"sort"
	"sync"
	"time"
)

// PendingInfo is a read-only view of one outstanding request.
type PendingInfo struct {
	Seq      uint32    `json:"seq"`
	Remote   string    `json:"remote"`
	SentAt   time.Time `json:"sent_at"`
	Deadline time.Time `json:"deadline"`
}

// pendingTable stores outstanding requests by sequence number. Every
// lookup-and-mutate runs under mu so that removal is the single point where
// a request is claimed for resolution.
type pendingTable struct {
	mu     sync.Mutex
	items  map[uint32]*Request
	closed bool
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		items: make(map[uint32]*Request),
	}
}

// insert adds r under seq and runs arm while still holding the lock, so
// anything arm sets on r is visible to whoever later removes it.
func (t *pendingTable) insert(seq uint32, r *Request, arm func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if _, ok := t.items[seq]; ok {
		return errSeqInUse
	}
	r.seq = seq
	t.items[seq] = r
	if arm != nil {
		arm()
	}
	return nil
}

// take removes whatever request is stored under seq.
func (t *pendingTable) take(seq uint32) (*Request, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.items[seq]
	if !ok {
		return nil, false
	}
	delete(t.items, seq)
	return r, true
}

// takeExact removes r only if it is still the entry under its seq.
func (t *pendingTable) takeExact(r *Request) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.items[r.seq]
	if !ok || cur != r {
		return false
	}
	delete(t.items, r.seq)
	return true
}

// drain closes the table and removes every entry.
func (t *pendingTable) drain() []*Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	out := make([]*Request, 0, len(t.items))
	for seq, r := range t.items {
		out = append(out, r)
		delete(t.items, seq)
	}
	return out
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

func (t *pendingTable) list() []PendingInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PendingInfo, 0, len(t.items))
	for _, r := range t.items {
		out = append(out, PendingInfo{
			Seq:      r.seq,
			Remote:   addrString(r.to),
			SentAt:   r.sentAt,
			Deadline: r.deadline,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Seq < out[j].Seq
	})
	return out
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
