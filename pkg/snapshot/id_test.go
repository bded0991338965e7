package snapshot

import "testing"

func TestSnapshotIDCompare(t *testing.T) {
	tests := []struct {
		a, b SnapshotID
		want int
	}{
		{SnapshotID{EndOffset: 1, Epoch: 1}, SnapshotID{EndOffset: 2, Epoch: 1}, -1},
		{SnapshotID{EndOffset: 2, Epoch: 1}, SnapshotID{EndOffset: 1, Epoch: 1}, 1},
		{SnapshotID{EndOffset: 5, Epoch: 1}, SnapshotID{EndOffset: 5, Epoch: 2}, -1},
		{SnapshotID{EndOffset: 5, Epoch: 2}, SnapshotID{EndOffset: 5, Epoch: 1}, 1},
		{SnapshotID{EndOffset: 5, Epoch: 2}, SnapshotID{EndOffset: 5, Epoch: 2}, 0},
		// end offset dominates epoch
		{SnapshotID{EndOffset: 1, Epoch: 9}, SnapshotID{EndOffset: 2, Epoch: 1}, -1},
	}
	for _, test := range tests {
		if got := test.a.Compare(test.b); got != test.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", test.a, test.b, got, test.want)
		}
		if got := test.a.Less(test.b); got != (test.want < 0) {
			t.Errorf("%v.Less(%v) = %v, want %v", test.a, test.b, got, test.want < 0)
		}
	}
}

func TestSnapshotIDStringRoundTrip(t *testing.T) {
	ids := []SnapshotID{
		{},
		{EndOffset: 9, Epoch: 3},
		{EndOffset: 1<<64 - 1, Epoch: 1<<32 - 1},
	}
	for _, id := range ids {
		name := id.String()
		if len(name) != 33 {
			t.Errorf("String(%v) = %q, want 33 characters", id, name)
		}
		parsed, err := ParseSnapshotID(name)
		if err != nil {
			t.Errorf("ParseSnapshotID(%q) err = %v", name, err)
			continue
		}
		if parsed != id {
			t.Errorf("ParseSnapshotID(%q) = %v, want %v", name, parsed, id)
		}
	}
}

func TestParseSnapshotIDMalformed(t *testing.T) {
	names := []string{
		"",
		"0000000000000009",
		"0000000000000009-3",
		"000000000000000z-0000000000000003",
		"0000000000000009-00000001000000ff", // epoch out of uint32 range
		"not a snapshot at all",
	}
	for _, name := range names {
		if _, err := ParseSnapshotID(name); err == nil {
			t.Errorf("ParseSnapshotID(%q) succeeded, want error", name)
		}
	}
}
