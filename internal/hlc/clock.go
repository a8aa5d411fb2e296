// Package hlc implements the hybrid logical clock used to totally order
// every write across the cluster.
package hlc

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/peerdoc/peerdoc/internal/errs"
)

// Timestamp is the (logicalTime, counter, nodeId) triple from spec §3.
// logicalTime is a millisecond physical-time proxy; counter breaks ties
// within the same logicalTime; nodeId is the final tie-breaker.
type Timestamp struct {
	LogicalTime uint64
	Counter     uint32
	NodeID      string
}

// Zero is the empty stamp (0,0,"") used as the floor for an empty store.
var Zero = Timestamp{}

// Clock is a per-node hybrid logical clock. The zero value is not usable;
// construct with NewClock.
type Clock struct {
	mu          sync.Mutex
	logicalTime uint64
	counter     uint32
	nodeID      string
	wallclock   func() int64 // milliseconds; overridable for tests
}

// NewClock creates a clock bound to nodeID.
func NewClock(nodeID string) *Clock {
	return &Clock{
		nodeID:    nodeID,
		wallclock: wallclockMillis,
	}
}

func wallclockMillis() int64 {
	return time.Now().UnixMilli()
}

// Now implements spec §4.1 now(): advance logicalTime to the wall clock if
// it has moved forward, otherwise bump the counter. Always strictly
// greater than any previously returned stamp from this clock.
func (c *Clock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	pt := uint64(c.wallclock())
	if pt > c.logicalTime {
		c.logicalTime = pt
		c.counter = 0
	} else {
		c.counter++
	}

	return Timestamp{LogicalTime: c.logicalTime, Counter: c.counter, NodeID: c.nodeID}
}

// Update implements spec §4.1 update(remote): fold a remote timestamp into
// local clock state and return the resulting local stamp, which is
// guaranteed strictly greater than both the prior local state and remote.
func (c *Clock) Update(remote Timestamp) Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	pt := uint64(c.wallclock())
	maxL := pt
	if c.logicalTime > maxL {
		maxL = c.logicalTime
	}
	if remote.LogicalTime > maxL {
		maxL = remote.LogicalTime
	}

	switch {
	case maxL == pt && maxL == c.logicalTime && maxL == remote.LogicalTime:
		if c.counter > remote.Counter {
			c.counter++
		} else {
			c.counter = remote.Counter + 1
		}
	case maxL == pt && maxL == c.logicalTime:
		c.counter++
	case maxL == pt && maxL == remote.LogicalTime:
		c.counter = remote.Counter + 1
	case maxL == c.logicalTime:
		c.counter++
	case maxL == remote.LogicalTime:
		c.counter = remote.Counter + 1
	default:
		c.counter = 0
	}

	c.logicalTime = maxL

	return Timestamp{LogicalTime: c.logicalTime, Counter: c.counter, NodeID: c.nodeID}
}

// Compare implements spec §4.1 compare(a,b): lexicographic
// (logicalTime, counter, nodeId). Returns -1, 0, or 1.
func Compare(a, b Timestamp) int {
	if a.LogicalTime != b.LogicalTime {
		if a.LogicalTime < b.LogicalTime {
			return -1
		}
		return 1
	}
	if a.Counter != b.Counter {
		if a.Counter < b.Counter {
			return -1
		}
		return 1
	}
	return strings.Compare(a.NodeID, b.NodeID)
}

// Before reports whether t orders strictly before other.
func (t Timestamp) Before(other Timestamp) bool { return Compare(t, other) < 0 }

// After reports whether t orders strictly after other.
func (t Timestamp) After(other Timestamp) bool { return Compare(t, other) > 0 }

// Equal reports whether t and other are the identical triple.
func (t Timestamp) Equal(other Timestamp) bool { return Compare(t, other) == 0 }

// IsZero reports whether t is the empty stamp.
func (t Timestamp) IsZero() bool { return t == Zero }

// String renders the textual wire form: "logicalTime-counter-nodeId".
// nodeId may itself contain '-' and is taken as the remainder after the
// second hyphen.
func (t Timestamp) String() string {
	return strconv.FormatUint(t.LogicalTime, 10) + "-" + strconv.FormatUint(uint64(t.Counter), 10) + "-" + t.NodeID
}

// Parse is the inverse of String. It fails when s contains fewer than two
// hyphens, or when the logicalTime or counter field is not an unsigned
// integer.
func Parse(s string) (Timestamp, error) {
	first := strings.IndexByte(s, '-')
	if first < 0 {
		return Timestamp{}, errs.Protocol("hlc: parse requires at least two hyphens", nil)
	}
	rest := s[first+1:]
	second := strings.IndexByte(rest, '-')
	if second < 0 {
		return Timestamp{}, errs.Protocol("hlc: parse requires at least two hyphens", nil)
	}

	logicalPart := s[:first]
	counterPart := rest[:second]
	nodePart := rest[second+1:]

	logical, err := strconv.ParseUint(logicalPart, 10, 64)
	if err != nil {
		return Timestamp{}, errs.Protocol("hlc: parse logicalTime", err)
	}
	counter, err := strconv.ParseUint(counterPart, 10, 32)
	if err != nil {
		return Timestamp{}, errs.Protocol("hlc: parse counter", err)
	}

	return Timestamp{LogicalTime: logical, Counter: uint32(counter), NodeID: nodePart}, nil
}

// Max returns whichever of a, b orders later.
func Max(a, b Timestamp) Timestamp {
	if a.After(b) {
		return a
	}
	return b
}
