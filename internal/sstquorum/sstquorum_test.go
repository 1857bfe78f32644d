package sstquorum

import "testing"

func TestRootNodeIndex(t *testing.T) {
	cases := []struct {
		entityIdx, l0TopDiv uint8
		want                uint32
	}{
		{1, 2, 4},
		{2, 2, 5},
		{1, 3, 8},
		{2, 3, 9},
		{1, 4, 16},
		{9, 4, 24},
		{16, 4, 31},
	}
	for _, c := range cases {
		got := RootNodeIndex(c.entityIdx, c.l0TopDiv)
		if got != c.want {
			t.Errorf("RootNodeIndex(%d,%d) = %d, want %d", c.entityIdx, c.l0TopDiv, got, c.want)
		}
	}
}

func TestLeafRange(t *testing.T) {
	const treeHeight = 5
	first := FirstLeafIdx(4, 3, treeHeight)
	last := LastLeafIdx(4, 3, treeHeight)
	if first != 12 || last != 15 {
		t.Errorf("entity 4, l0TopDiv 3: got [%d,%d], want [12,15]", first, last)
	}

	first = FirstLeafIdx(4, 4, treeHeight)
	last = LastLeafIdx(4, 4, treeHeight)
	if first != 6 || last != 7 {
		t.Errorf("entity 4, l0TopDiv 4: got [%d,%d], want [6,7]", first, last)
	}
}

func TestNumSigningEntities(t *testing.T) {
	if got := NumSigningEntities(3); got != 8 {
		t.Errorf("NumSigningEntities(3) = %d, want 8", got)
	}
}

func TestValidateRejectsOutOfRangeEntity(t *testing.T) {
	if err := Validate(0, 2, 10); err == nil {
		t.Error("expected error for entity index 0")
	}
	if err := Validate(5, 2, 10); err == nil {
		t.Error("expected error for entity index beyond 2^l0TopDiv")
	}
	if err := Validate(1, 2, 10); err != nil {
		t.Errorf("unexpected error for a valid entity: %v", err)
	}
}

func TestValidateRejectsDivisionAboveTreeHeight(t *testing.T) {
	if err := Validate(1, 11, 10); err == nil {
		t.Error("expected error when l0TopDiv exceeds tree height")
	}
}
