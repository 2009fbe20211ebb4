package core

import (
	"sync"
)

// Cache keeps host objects addressable across requests.
//
// An entry lives from Insert until Delete (or Clear).  There is no
// eviction.  The Cache owns the mapping only; releasing whatever
// resource the object holds is the host runtime's business.
type Cache struct {
	mu      sync.Mutex
	objects map[uint64]interface{}
	last    uint64
}

// NewCache makes an empty Cache.
func NewCache() *Cache {
	return &Cache{
		objects: make(map[uint64]interface{}, 64),
	}
}

// Insert stores x and returns its new id.
//
// Ids start at 1 and are never reused.
func (c *Cache) Insert(x interface{}) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last++
	c.objects[c.last] = x
	return c.last
}

// Get returns the object for the given id.
func (c *Cache) Get(id uint64) (interface{}, error) {
	c.mu.Lock()
	x, have := c.objects[id]
	c.mu.Unlock()
	if !have {
		return nil, unknownRef(id)
	}
	return x, nil
}

// Delete removes the entry for the given id and returns the object
// that was there.
func (c *Cache) Delete(id uint64) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	x, have := c.objects[id]
	if !have {
		return nil, unknownRef(id)
	}
	delete(c.objects, id)
	return x, nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.objects)
}

// Clear drops every entry and returns how many there were.  For
// process teardown.  The id counter is not reset.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.objects)
	c.objects = make(map[uint64]interface{}, 64)
	return n
}

func unknownRef(id uint64) *Error {
	return NewError(UnknownReference, "no reference %d", id)
}
