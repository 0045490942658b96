// Package commitlog implements the append-only per-topic log that backs
// Courier's message distribution engine: a singly linked sequence of
// envelopes with a stable head sentinel, head-side truncation, and weak
// handles (Cursor, Index) that observe it without blocking publishers or
// the reaper.
//
// Go has no portable, pre-1.24 weak-pointer primitive suited to this; this
// package simulates weak references with monotonic sequence numbers
// instead (see Index and Cursor) rather than true weak.Pointer handles —
// see DESIGN.md for the tradeoff.
package commitlog

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Envelope is the internal per-message record held in the log.
type Envelope struct {
	ID          uuid.UUID
	PublishedAt time.Time
	Data        string
}

// node holds one envelope and a forward link. Node 0 is reserved for the
// sentinel and is never itself observed.
type node struct {
	seq  uint64
	env  Envelope
	next *node
}

// CommitLog is an append-only singly linked sequence of envelopes with a
// head sentinel. It is safe for concurrent use by any number of appenders,
// cursors, and the cleanup routine.
type CommitLog struct {
	sentinel *node // seq 0, payload never observed

	mu      sync.Mutex
	tail    *node // nil when empty
	length  int
	nextSeq uint64 // sequence to assign to the next appended node

	dropped atomic.Uint64 // count of nodes ever truncated from the head
}

// New creates an empty CommitLog.
func New() *CommitLog {
	return &CommitLog{
		sentinel: &node{seq: 0},
		nextSeq:  1,
	}
}

// Len returns the number of live envelopes currently in the log.
func (cl *CommitLog) Len() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.length
}

// Empty reports whether the log currently holds no live envelopes.
func (cl *CommitLog) Empty() bool {
	return cl.Len() == 0
}

// DroppedCount returns how many envelopes have ever been truncated from
// the head. It is safe to call without holding any lock — it is exactly
// the value cursors and indexes use to detect truncation lock-free.
func (cl *CommitLog) DroppedCount() uint64 {
	return cl.dropped.Load()
}

// Append links a new envelope after the current tail and returns an Index
// pointing at it. Runs in O(1).
func (cl *CommitLog) Append(id uuid.UUID, publishedAt time.Time, data string) Index {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	n := &node{
		seq: cl.nextSeq,
		env: Envelope{ID: id, PublishedAt: publishedAt, Data: data},
	}
	cl.nextSeq++

	if cl.tail == nil {
		cl.sentinel.next = n
	} else {
		cl.tail.next = n
	}
	cl.tail = n
	cl.length++

	return Index{node: n, log: cl}
}

// isExpired reports whether the node with the given sequence number has
// been truncated from the log. The sentinel (seq 0) is never expired.
func (cl *CommitLog) isExpired(seq uint64) bool {
	return seq != 0 && seq <= cl.dropped.Load()
}

// Cleanup repeatedly inspects the head of the log and removes it while
// pred(payload) holds, stopping at the first envelope pred rejects — the
// removed prefix is always contiguous. Returns the number of envelopes
// removed.
func (cl *CommitLog) Cleanup(pred func(Envelope) bool) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	removed := 0
	for {
		head := cl.sentinel.next
		if head == nil {
			break
		}
		if !pred(head.env) {
			break
		}

		cl.sentinel.next = head.next
		if cl.tail == head {
			cl.tail = nil
		}
		head.next = nil // iterative teardown: sever, don't recurse

		cl.dropped.Add(1)
		cl.length--
		removed++
	}
	return removed
}

// Close releases every node in the log iteratively. A recursive free of a
// long chain would risk blowing the call stack; walking and nulling next
// pointers does not.
func (cl *CommitLog) Close() {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	n := cl.sentinel.next
	for n != nil {
		next := n.next
		n.next = nil
		n = next
	}
	cl.sentinel.next = nil
	cl.tail = nil
	cl.length = 0
}
