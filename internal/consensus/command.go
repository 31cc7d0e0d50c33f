package consensus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/execution-hub/fnhub/internal/application/registry"
	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
)

// CommandType names one replicated registry mutation.
type CommandType string

const (
	CommandRegister   CommandType = "register"
	CommandUpdate     CommandType = "update"
	CommandHeartbeat  CommandType = "heartbeat"
	CommandRemove     CommandType = "remove"
	CommandSweep      CommandType = "sweep"
	CommandTransition CommandType = "transition"
)

// Command is one log entry. Ids and timestamps are chosen by the proposer
// so every replica applies identical state.
type Command struct {
	Type      CommandType     `json:"type"`
	Worker    *worker.Worker  `json:"worker,omitempty"`
	ID        types.ID        `json:"id"`
	Now       types.TimeStamp `json:"now"`
	Threshold time.Duration   `json:"threshold,omitempty"`
	From      worker.Status   `json:"from,omitempty"`
	To        worker.Status   `json:"to,omitempty"`
}

// applyResult is what the FSM hands back through the raft future.
type applyResult struct {
	worker worker.Worker
	ids    []types.ID
	err    error
}

func encodeCommand(cmd Command) ([]byte, error) {
	return json.Marshal(cmd)
}

func decodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("decode command: %w", err)
	}
	return cmd, nil
}

// apply runs cmd against the table.
func apply(table *registry.Table, cmd Command) applyResult {
	var res applyResult
	switch cmd.Type {
	case CommandRegister:
		if cmd.Worker == nil {
			res.err = fmt.Errorf("register: worker is required")
			break
		}
		res.worker = table.Insert(*cmd.Worker)
	case CommandUpdate:
		if cmd.Worker == nil {
			res.err = fmt.Errorf("update: worker is required")
			break
		}
		res.worker, res.err = table.Update(*cmd.Worker)
	case CommandHeartbeat:
		res.worker, res.err = table.Touch(cmd.ID, cmd.Now)
	case CommandRemove:
		res.worker, res.err = table.Disable(cmd.ID)
	case CommandSweep:
		res.ids = table.SweepStale(cmd.Now, cmd.Threshold)
	case CommandTransition:
		res.worker, res.err = table.Transition(cmd.ID, cmd.From, cmd.To)
	default:
		res.err = fmt.Errorf("unknown command %q", cmd.Type)
	}
	return res
}
