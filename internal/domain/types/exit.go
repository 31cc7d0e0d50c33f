package types

import (
	"encoding/json"
	"fmt"
)

// ExitKindType classifies the outcome of a function call.
type ExitKindType string

const (
	ExitSuccess ExitKindType = "success"
	ExitFailure ExitKindType = "failure"
	ExitTimeOut ExitKindType = "timeout"
)

// ExitKind is one of Success, Failure{ExitCode} or TimeOut.
// ExitCode is only meaningful for failures.
type ExitKind struct {
	Kind     ExitKindType
	ExitCode uint32
}

func Success() ExitKind {
	return ExitKind{Kind: ExitSuccess}
}

func Failure(code uint32) ExitKind {
	return ExitKind{Kind: ExitFailure, ExitCode: code}
}

func TimeOut() ExitKind {
	return ExitKind{Kind: ExitTimeOut}
}

func (e ExitKind) IsSuccess() bool { return e.Kind == ExitSuccess }

func (e ExitKind) String() string {
	if e.Kind == ExitFailure {
		return fmt.Sprintf("failure(%d)", e.ExitCode)
	}
	return string(e.Kind)
}

type exitKindJSON struct {
	Kind     ExitKindType `json:"kind"`
	ExitCode *uint32      `json:"exitCode,omitempty"`
}

func (e ExitKind) MarshalJSON() ([]byte, error) {
	out := exitKindJSON{Kind: e.Kind}
	if e.Kind == ExitFailure {
		code := e.ExitCode
		out.ExitCode = &code
	}
	return json.Marshal(out)
}

func (e *ExitKind) UnmarshalJSON(data []byte) error {
	var in exitKindJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case ExitSuccess, ExitTimeOut:
		*e = ExitKind{Kind: in.Kind}
	case ExitFailure:
		if in.ExitCode == nil {
			return fmt.Errorf("failure exit kind requires exitCode")
		}
		*e = Failure(*in.ExitCode)
	default:
		return fmt.Errorf("unknown exit kind %q", in.Kind)
	}
	return nil
}
