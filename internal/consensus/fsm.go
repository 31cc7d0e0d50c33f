package consensus

import (
	"io"

	"github.com/hashicorp/raft"

	"github.com/execution-hub/fnhub/internal/application/registry"
)

// fsm wires raft log entries into the worker table.
type fsm struct {
	table *registry.Table
}

func (f *fsm) Apply(log *raft.Log) interface{} {
	cmd, err := decodeCommand(log.Data)
	if err != nil {
		return applyResult{err: err}
	}
	return apply(f.table, cmd)
}

func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	data, err := f.table.Marshal()
	if err != nil {
		return nil, err
	}
	return &fsmSnapshot{data: data}, nil
}

func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return f.table.Unmarshal(data)
}

type fsmSnapshot struct {
	data []byte
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if len(s.data) == 0 {
		return sink.Close()
	}
	if _, err := sink.Write(s.data); err != nil {
		_ = sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
