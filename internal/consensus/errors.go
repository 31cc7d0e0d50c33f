package consensus

import (
	"errors"
	"fmt"
)

var ErrNotLeader = errors.New("not the raft leader")

// NotLeaderError carries the current leader, when one is known.
type NotLeaderError struct {
	LeaderID   string
	LeaderAddr string
}

func (e *NotLeaderError) Error() string {
	if e.LeaderAddr == "" {
		return ErrNotLeader.Error() + ": no leader elected"
	}
	return fmt.Sprintf("%s: leader is %s (%s)", ErrNotLeader, e.LeaderID, e.LeaderAddr)
}

func (e *NotLeaderError) Unwrap() error { return ErrNotLeader }
