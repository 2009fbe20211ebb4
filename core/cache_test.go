package core

import (
	"sync"
	"testing"
)

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache()
	x := &counter{n: 42}

	id := c.Insert(x)
	y, err := c.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if y != x {
		t.Fatalf("got %#v, not the inserted %#v", y, x)
	}
	if _, err = c.Delete(id); err != nil {
		t.Fatal(err)
	}
	if _, err = c.Get(id); !IsKind(err, UnknownReference) {
		t.Fatalf("wanted UnknownReference, got %v", err)
	}
	if _, err = c.Delete(id); !IsKind(err, UnknownReference) {
		t.Fatalf("double delete: wanted UnknownReference, got %v", err)
	}
}

func TestCacheIdsNotReused(t *testing.T) {
	c := NewCache()
	a := c.Insert("a")
	if a != 1 {
		t.Fatalf("first id is %d", a)
	}
	if _, err := c.Delete(a); err != nil {
		t.Fatal(err)
	}
	b := c.Insert("b")
	if b == a {
		t.Fatalf("id %d reused", a)
	}
	if x, err := c.Get(b); err != nil || x != "b" {
		t.Fatalf("got %#v, %v", x, err)
	}
}

func TestCacheClear(t *testing.T) {
	c := NewCache()
	for i := 0; i < 3; i++ {
		c.Insert(i)
	}
	if n := c.Clear(); n != 3 {
		t.Fatalf("cleared %d", n)
	}
	if n := c.Len(); n != 0 {
		t.Fatalf("%d left", n)
	}
	if id := c.Insert("again"); id != 4 {
		t.Fatalf("counter reset: %d", id)
	}
}

func TestCacheConcurrent(t *testing.T) {
	var (
		c   = NewCache()
		wg  sync.WaitGroup
		n   = 16
		per = 100
		ids = make(chan uint64, n*per)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				ids <- c.Insert(j)
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool, n*per)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if c.Len() != n*per {
		t.Fatalf("have %d entries", c.Len())
	}
}
