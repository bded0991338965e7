package snapshot

import (
	"fmt"
	"strconv"
	"strings"
)

// SnapshotID pins a snapshot to an exact position in the replicated log.
// EndOffset is the offset one past the last record included in the
// snapshot, Epoch is the leader epoch of that record. The log guarantees
// at most one frozen artifact exists per id.
type SnapshotID struct {
	EndOffset uint64
	Epoch     uint32
}

// Compare orders ids by (EndOffset, Epoch). It returns a negative number,
// zero or a positive number as id sorts before, equal to or after other.
func (id SnapshotID) Compare(other SnapshotID) int {
	if id.EndOffset != other.EndOffset {
		if id.EndOffset < other.EndOffset {
			return -1
		}
		return 1
	}
	if id.Epoch != other.Epoch {
		if id.Epoch < other.Epoch {
			return -1
		}
		return 1
	}
	return 0
}

func (id SnapshotID) Less(other SnapshotID) bool {
	return id.Compare(other) < 0
}

// String renders the id the way artifacts are named on disk and keyed in
// non-file stores: zero padded hex endOffset-epoch.
func (id SnapshotID) String() string {
	return fmt.Sprintf("%016x-%016x", id.EndOffset, uint64(id.Epoch))
}

// ParseSnapshotID parses the String form back into an id.
func ParseSnapshotID(name string) (SnapshotID, error) {
	parts := strings.SplitN(name, "-", 2)
	if len(parts) != 2 || len(parts[0]) != 16 || len(parts[1]) != 16 {
		return SnapshotID{}, fmt.Errorf("snap: malformed snapshot name %q", name)
	}
	endOffset, err := strconv.ParseUint(parts[0], 16, 64)
	if err != nil {
		return SnapshotID{}, fmt.Errorf("snap: malformed snapshot name %q: %v", name, err)
	}
	epoch, err := strconv.ParseUint(parts[1], 16, 64)
	if err != nil {
		return SnapshotID{}, fmt.Errorf("snap: malformed snapshot name %q: %v", name, err)
	}
	if epoch > 0xFFFFFFFF {
		return SnapshotID{}, fmt.Errorf("snap: epoch out of range in snapshot name %q", name)
	}
	return SnapshotID{EndOffset: endOffset, Epoch: uint32(epoch)}, nil
}
