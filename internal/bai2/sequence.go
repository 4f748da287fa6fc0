package bai2

import (
	"strconv"
	"sync/atomic"
	"time"
)

// Sequence hands out monotonically increasing file ids for one run.
type Sequence struct {
	next atomic.Uint64
}

// NewSequence starts a sequence whose first id is start.
func NewSequence(start uint64) *Sequence {
	s := &Sequence{}
	s.next.Store(start)
	return s
}

// SequenceFromClock seeds a sequence from the seconds elapsed since midnight of now,
// so ids issued by separate runs on the same day rarely collide.
func SequenceFromClock(now time.Time) *Sequence {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return NewSequence(uint64(now.Sub(midnight)/time.Second) + 1)
}

// Next returns the next id.
func (s *Sequence) Next() uint64 {
	return s.next.Add(1) - 1
}

// RunContext carries the clock reading and id counter of a single conversion.
// Holding both fixed makes assembly byte-for-byte reproducible.
type RunContext struct {
	Now      time.Time
	Sequence *Sequence
}

// NewRunContext seeds the counter from now.
func NewRunContext(now time.Time) RunContext {
	return RunContext{Now: now, Sequence: SequenceFromClock(now)}
}

func (rc RunContext) fileDate() string { return rc.Now.Format("060102") }
func (rc RunContext) fileTime() string { return rc.Now.Format("1504") }

func (rc RunContext) nextFileID() string {
	if rc.Sequence == nil {
		return "1"
	}
	return strconv.FormatUint(rc.Sequence.Next(), 10)
}
