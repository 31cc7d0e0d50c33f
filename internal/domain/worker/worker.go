package worker

import (
	"errors"
	"fmt"
	"time"

	"github.com/execution-hub/fnhub/internal/domain/types"
)

// Status represents worker status.
type Status string

const (
	StatusAvailable Status = "available"
	StatusOccupied  Status = "occupied"
	StatusDisabled  Status = "disabled"
	StatusUnknown   Status = "unknown"
)

var (
	ErrNotFound       = errors.New("worker not found")
	ErrStatusConflict = errors.New("worker status changed concurrently")
)

// ParseStatus validates a textual status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusAvailable, StatusOccupied, StatusDisabled, StatusUnknown:
		return st, nil
	}
	return "", fmt.Errorf("invalid worker status %q", s)
}

// Worker is a process that hosts the sandbox and executes functions.
type Worker struct {
	ID            types.ID        `json:"id"`
	Address       string          `json:"address"`
	Status        Status          `json:"status"`
	CreateTime    types.TimeStamp `json:"createTime"`
	LastHeartbeat types.TimeStamp `json:"lastHeartbeat"`
}

// New creates an available worker with a fresh id.
func New(address string, now types.TimeStamp) Worker {
	return Worker{
		ID:            types.NewID(),
		Address:       address,
		Status:        StatusAvailable,
		CreateTime:    now,
		LastHeartbeat: now,
	}
}

// Dispatchable reports whether the worker may receive new executions.
func (w Worker) Dispatchable() bool {
	return w.Status == StatusAvailable
}

// Stale reports whether the last heartbeat is older than threshold.
func (w Worker) Stale(now types.TimeStamp, threshold time.Duration) bool {
	return now.Sub(w.LastHeartbeat) > threshold
}
