package lru

import "testing"

func TestAddAndGet(t *testing.T) {
	c := New(2)
	c.Add("a", 1)

	v, ok := c.Get("a")
	if !ok || v.(int) != 1 {
		t.Fatalf("expected hit for a, got %v %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss")
	}
}

func TestEviction(t *testing.T) {
	c := New(2)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have been evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("b should survive")
	}
	if c.Len() != 2 {
		t.Fatalf("unexpected len %d", c.Len())
	}
}

func TestGetPromotes(t *testing.T) {
	c := New(2)
	c.Add("a", 1)
	c.Add("b", 2)

	// Touch a so b becomes the eviction victim.
	c.Get("a")
	c.Add("c", 3)

	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should survive after promotion")
	}
	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
}

func TestOverwrite(t *testing.T) {
	c := New(2)
	c.Add("a", 1)
	c.Add("a", 2)

	v, _ := c.Get("a")
	if v.(int) != 2 {
		t.Fatalf("expected overwritten value, got %v", v)
	}
	if c.Len() != 1 {
		t.Fatalf("overwrite must not grow the cache, len %d", c.Len())
	}
}

func TestRemove(t *testing.T) {
	c := New(2)
	c.Add("a", 1)
	c.Remove("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should be gone")
	}
}
