package hashindex

import "testing"

func TestGetInsert(t *testing.T) {
	idx := New[string, int](4)
	if _, ok := idx.Get("a"); ok {
		t.Fatal("expected miss on empty index")
	}
	idx.Insert("a", 1)
	v, ok := idx.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", v, ok)
	}
}

func TestForEach(t *testing.T) {
	idx := New[int, string](4)
	idx.Insert(1, "one")
	idx.Insert(2, "two")
	seen := map[int]string{}
	idx.ForEach(func(k int, v string) { seen[k] = v })
	if len(seen) != 2 || seen[1] != "one" || seen[2] != "two" {
		t.Fatalf("ForEach produced %v", seen)
	}
}

func TestFreeAll(t *testing.T) {
	idx := New[string, int](4)
	idx.Insert("a", 1)
	idx.Insert("b", 2)
	var freed []string
	idx.FreeAll(func(v int) { freed = append(freed, string(rune('a'+v-1))) })
	if idx.Len() != 0 {
		t.Fatalf("expected empty index after FreeAll, got %d entries", idx.Len())
	}
	if len(freed) != 2 {
		t.Fatalf("expected destructor called twice, got %d", len(freed))
	}
}
