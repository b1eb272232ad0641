package coherence

import "math/rand"

// Cache is a fixed-size, direct-owned set of cache blocks (§3, §4.2). It is
// privately owned by exactly one Processor; any access from outside that
// processor's goroutine must go through the coherence Engine, never
// directly through Cache's methods.
type Cache struct {
	blocks        []*Block
	associativity int // informational only — see §4.2
}

// NewCache builds a cache of size blocks, all starting Invalid with zeroed
// data. associativity is carried only for display; the replacement policy
// below is fixed regardless of its value.
func NewCache(size, associativity int) *Cache {
	blocks := make([]*Block, size)
	for i := range blocks {
		blocks[i] = newBlock(i)
	}
	return &Cache{blocks: blocks, associativity: associativity}
}

// Size returns the number of blocks in the cache.
func (c *Cache) Size() int {
	return len(c.blocks)
}

// Lookup returns the block holding addr and true iff a line for that
// address exists and its state is not Invalid.
func (c *Cache) Lookup(addr int) (View, bool) {
	for _, b := range c.blocks {
		v := b.View()
		if v.Address == addr && v.State != Invalid {
			return v, true
		}
	}
	return View{}, false
}

// find returns the block currently tagged with addr, valid or not, or nil.
func (c *Cache) find(addr int) *Block {
	for _, b := range c.blocks {
		if b.View().Address == addr {
			return b
		}
	}
	return nil
}

// Install places (addr, data, state) into the cache, selecting a victim in
// this order: (a) an existing block already tagged with addr, (b) any
// Invalid block, (c) a uniformly random victim among blocks not in M or O,
// falling back to a uniformly random victim among all blocks if every line
// is M or O. The victim's prior contents are simply overwritten: there is
// no writeback-latency model in this simulator, so a dirty victim's data
// is lost (see open question (b), §9).
func (c *Cache) Install(addr int, data uint16, state State) {
	if b := c.find(addr); b != nil {
		b.Install(addr, data, state)
		return
	}

	for _, b := range c.blocks {
		if b.View().State == Invalid {
			b.Install(addr, data, state)
			return
		}
	}

	var clean []*Block
	for _, b := range c.blocks {
		switch b.View().State {
		case Modified, Owned:
		default:
			clean = append(clean, b)
		}
	}
	if len(clean) > 0 {
		clean[rand.Intn(len(clean))].Install(addr, data, state)
		return
	}
	c.blocks[rand.Intn(len(c.blocks))].Install(addr, data, state)
}

// SetState transitions the block tagged with addr to newState. It is
// undefined (a no-op) if no block is currently tagged with addr, matching
// §4.2's "undefined if not present" contract — callers only invoke this
// from the coherence engine, which only ever targets addresses it has
// just found present via a peer scan.
func (c *Cache) SetState(addr int, newState State) (old State, ok bool) {
	if b := c.find(addr); b != nil {
		return b.SetState(newState), true
	}
	return Invalid, false
}

// Snapshot returns a frozen copy of every block for the observer UI.
func (c *Cache) Snapshot() []View {
	views := make([]View, len(c.blocks))
	for i, b := range c.blocks {
		views[i] = b.View()
	}
	return views
}
