package kf8

import (
	"bytes"
	"testing"

	"github.com/htol/gomobi/index"
)

func TestReconstructNoFragments(t *testing.T) {
	raw := []byte("hello world")
	skel := &index.Index{Entries: []index.Entry{
		{Label: []byte("SKEL0000000000"), Tags: map[uint8][]uint32{
			tagFragmentCount:  {0},
			tagPositionLength: {0, 5},
		}},
		{Label: []byte("SKEL0000000001"), Tags: map[uint8][]uint32{
			tagFragmentCount:  {0},
			tagPositionLength: {6, 5},
		}},
	}}
	frag := &index.Index{}

	parts, err := Reconstruct(raw, skel, frag)
	if err != nil {
		t.Fatalf("Reconstruct() failed: %v", err)
	}
	if len(parts) != 2 || string(parts[0]) != "hello" || string(parts[1]) != "world" {
		t.Fatalf("got parts %q", parts)
	}
}

func TestReconstructWithFragmentSplice(t *testing.T) {
	// Skeleton "AACC" at [0:4); one fragment "BB" is spliced in at
	// insertion point 2, with its body following the skeleton bytes in
	// the raw stream.
	raw := []byte("AACCBB")
	skel := &index.Index{Entries: []index.Entry{
		{Label: []byte("SKEL0000000000"), Tags: map[uint8][]uint32{
			tagFragmentCount:  {1},
			tagPositionLength: {0, 4},
		}},
	}}
	frag := &index.Index{Entries: []index.Entry{
		{Label: []byte("0000000002"), Tags: map[uint8][]uint32{
			tagPositionLength: {0, 2},
		}},
	}}

	parts, err := Reconstruct(raw, skel, frag)
	if err != nil {
		t.Fatalf("Reconstruct() failed: %v", err)
	}
	if len(parts) != 1 || string(parts[0]) != "AABBCC" {
		t.Fatalf("got parts %q, want [AABBCC]", parts)
	}
}

func TestFlattenReconstructRoundTrip(t *testing.T) {
	parts := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	raw, skel, frag := Flatten(parts)

	got, err := Reconstruct(raw, skel, frag)
	if err != nil {
		t.Fatalf("Reconstruct() failed: %v", err)
	}
	if len(got) != len(parts) {
		t.Fatalf("got %d parts, want %d", len(got), len(parts))
	}
	for i := range parts {
		if !bytes.Equal(got[i], parts[i]) {
			t.Errorf("part %d = %q, want %q", i, got[i], parts[i])
		}
	}
}

func TestJoin(t *testing.T) {
	got := Join([][]byte{[]byte("a"), []byte("b"), []byte("c")})
	if string(got) != "a\nb\nc" {
		t.Errorf("Join() = %q, want %q", got, "a\nb\nc")
	}
}
