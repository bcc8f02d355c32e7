package election

import (
	"time"
)

type LeaderElected struct {
	Epoch uint32
	Time  time.Time

	// set when leadership arrived by handover, State then carries the
	// serialized table and Seq the last number Predecessor produced
	Handover    bool
	State       []byte
	Seq         int64
	Predecessor string
}

type LeaderRevoked struct {
	Epoch     uint32
	Successor string
	Time      time.Time
}

type UserCallback interface {
	LeaderElected(*LeaderElected)
	LeaderRevoked(*LeaderRevoked)
}
