package bitset_test

import (
	"testing"

	"github.com/n9te9/federation-query-planner/internal/bitset"
)

func TestSet_InsertContainsRemove(t *testing.T) {
	s := bitset.New(4)
	s.Insert(2)
	s.Insert(70) // forces a grow past the first word

	if !s.Contains(2) || !s.Contains(70) {
		t.Fatalf("Contains: expected bits 2 and 70 set")
	}
	if s.Contains(3) {
		t.Fatalf("Contains(3): expected false")
	}

	s.Remove(2)
	if s.Contains(2) {
		t.Fatalf("Remove(2): bit still set")
	}
}

func TestSet_UnionAndIntersects(t *testing.T) {
	a := bitset.New(8)
	b := bitset.New(8)
	a.Insert(1)
	b.Insert(5)

	if a.Intersects(b) {
		t.Fatalf("Intersects: disjoint sets reported as intersecting")
	}

	a.UnionWith(b)
	if !a.Contains(1) || !a.Contains(5) {
		t.Fatalf("UnionWith: expected both bits set after union")
	}

	c := bitset.New(8)
	c.Insert(5)
	if !a.Intersects(c) {
		t.Fatalf("Intersects: expected overlap on bit 5")
	}
}

func TestSet_FullAndCount(t *testing.T) {
	s := bitset.New(3)
	s.Insert(0)
	s.Insert(1)
	if s.Full(3) {
		t.Fatalf("Full(3): expected false with bit 2 unset")
	}
	s.Insert(2)
	if !s.Full(3) {
		t.Fatalf("Full(3): expected true with all of 0,1,2 set")
	}
	if got := s.Count(); got != 3 {
		t.Fatalf("Count: got %d, want 3", got)
	}
}

func TestSet_SliceIsSorted(t *testing.T) {
	s := bitset.New(0)
	for _, i := range []int{9, 0, 130, 4} {
		s.Insert(i)
	}
	got := s.Slice()
	want := []int{0, 4, 9, 130}
	if len(got) != len(want) {
		t.Fatalf("Slice: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Slice: got %v, want %v", got, want)
		}
	}
}
