package commitlog

// Index is a weak handle to a single log node. Get resolves it to the
// envelope if the node is still live, or reports expiry. Indexes are
// never mutated and never block: liveness is a single atomic load against
// the owning log's dropped counter, so Get never takes cl.mu.
type Index struct {
	node *node
	log  *CommitLog
}

// Get returns the envelope the index points at, or false if it has been
// truncated from the log.
func (ix Index) Get() (Envelope, bool) {
	if ix.node == nil || ix.log.isExpired(ix.node.seq) {
		return Envelope{}, false
	}
	return ix.node.env, true
}

// Cursor is a weak position within a CommitLog: a pointer to the node
// whose next link names the next message to deliver, plus a cached
// logical sequence number. It self-heals after the node it was sitting on
// is truncated by cleanup.
type Cursor struct {
	log       *CommitLog
	node      *node
	nextIndex uint64
}

// NewHeadCursor returns a cursor positioned at the log's sentinel: the
// next call to Next delivers the oldest still-live envelope.
func (cl *CommitLog) NewHeadCursor() *Cursor {
	return &Cursor{
		log:       cl,
		node:      cl.sentinel,
		nextIndex: cl.dropped.Load(),
	}
}

// NewTailCursor returns a cursor positioned at the log's current tail: the
// next call to Next only delivers envelopes published after this call.
func (cl *CommitLog) NewTailCursor() *Cursor {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	tail := cl.tail
	if tail == nil {
		tail = cl.sentinel
	}
	return &Cursor{
		log:       cl,
		node:      tail,
		nextIndex: cl.dropped.Load() + uint64(cl.length),
	}
}

// NextIndex returns the absolute sequence number the next delivery from
// this cursor would carry. It is non-decreasing across the cursor's
// lifetime.
func (c *Cursor) NextIndex() uint64 {
	c.log.mu.Lock()
	defer c.log.mu.Unlock()
	return c.nextIndex
}

// Peek resolves the cursor's held node; if it is still live, it returns a
// clone of the successor's payload without advancing. It does not
// self-heal on expiry — only Next does.
func (c *Cursor) Peek() (Envelope, bool) {
	c.log.mu.Lock()
	defer c.log.mu.Unlock()

	if c.log.isExpired(c.node.seq) {
		return Envelope{}, false
	}
	if c.node.next == nil {
		return Envelope{}, false
	}
	return c.node.next.env, true
}

// Next advances the cursor and returns the envelope it moved onto, along
// with an Index pointing at that same node. If the held node has been
// truncated, Next resets to the sentinel and retries once — the sentinel
// is guaranteed to be live — so a reader that slept through a large
// cleanup lands on the first surviving message rather than a dead end.
func (c *Cursor) Next() (Envelope, Index, bool) {
	c.log.mu.Lock()
	defer c.log.mu.Unlock()
	return c.nextLocked(true)
}

func (c *Cursor) nextLocked(retry bool) (Envelope, Index, bool) {
	if c.log.isExpired(c.node.seq) {
		c.node = c.log.sentinel
		c.nextIndex = c.log.dropped.Load()
		if retry {
			return c.nextLocked(false)
		}
		return Envelope{}, Index{}, false
	}

	if c.node.next == nil {
		return Envelope{}, Index{}, false
	}

	c.node = c.node.next
	c.nextIndex++
	return c.node.env, Index{node: c.node, log: c.log}, true
}
