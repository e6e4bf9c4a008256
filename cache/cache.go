package cache

import (
	"math/rand"

	"github.com/mit-pdos/go-journal/util"
)

// A fixed-size cache mapping from uint64 to a slot in the cache. The
// cache has a fixed number of slots, and each slot is bound to at most
// one id. Lookup finds the slot bound to an id. When an id isn't
// present, Victim picks the slot to rebind: the next never-used slot
// while there is one, otherwise a slot chosen uniformly at random among
// all slots. The random source is seeded once, so the sequence of victims
// is the same from run to run. Callers own the contents of a slot and
// are responsible for writing back a dirty slot before rebinding it.
//
// The cache is not safe for concurrent use.

type Cslot struct {
	Index uint64 // position in the cache
	Id    uint64 // valid only if Bound
	Bound bool
	Dirty bool
	Obj   interface{}
}

type Cache struct {
	slots   []Cslot
	entries map[uint64]*Cslot
	cnt     uint64 // slots [0, cnt) have been bound
	rnd     *rand.Rand
}

func MkCache(sz uint64, seed int64) *Cache {
	if sz == 0 {
		panic("MkCache: zero slots")
	}
	slots := make([]Cslot, sz)
	for i := range slots {
		slots[i].Index = uint64(i)
	}
	return &Cache{
		slots:   slots,
		entries: make(map[uint64]*Cslot, sz),
		cnt:     0,
		rnd:     rand.New(rand.NewSource(seed)),
	}
}

func (c *Cache) Size() uint64 {
	return uint64(len(c.slots))
}

// Len returns the number of bound slots.
func (c *Cache) Len() uint64 {
	return uint64(len(c.entries))
}

func (c *Cache) PrintCache() {
	for i := range c.slots {
		s := &c.slots[i]
		if s.Bound {
			util.DPrintf(0, "Slot %d: id %d dirty %v\n", s.Index, s.Id, s.Dirty)
		}
	}
}

// Lookup returns the slot bound to id, or nil.
func (c *Cache) Lookup(id uint64) *Cslot {
	return c.entries[id]
}

// Victim chooses the slot to use for an id that isn't cached. The slot
// may still be bound (and dirty); Bind takes it over.
func (c *Cache) Victim() *Cslot {
	if c.cnt < c.Size() {
		return &c.slots[c.cnt]
	}
	i := c.rnd.Int63n(int64(len(c.slots)))
	util.DPrintf(10, "evict: slot %d id %d\n", i, c.slots[i].Id)
	return &c.slots[i]
}

// Bind drops slot's old binding, if any, and binds it to id. The slot
// comes back clean with its Obj untouched.
func (c *Cache) Bind(slot *Cslot, id uint64) {
	if old := c.entries[id]; old != nil && old != slot {
		panic("Bind: id already bound to another slot")
	}
	if slot.Bound {
		delete(c.entries, slot.Id)
	} else if slot.Index == c.cnt {
		c.cnt = c.cnt + 1
	}
	slot.Id = id
	slot.Bound = true
	slot.Dirty = false
	c.entries[id] = slot
}

// Slot returns the i-th slot, for walking the cache in slot order.
func (c *Cache) Slot(i uint64) *Cslot {
	return &c.slots[i]
}

// Reset unbinds every slot and drops their contents.
func (c *Cache) Reset() {
	for i := range c.slots {
		c.slots[i] = Cslot{Index: uint64(i)}
	}
	c.entries = make(map[uint64]*Cslot, len(c.slots))
	c.cnt = 0
}
