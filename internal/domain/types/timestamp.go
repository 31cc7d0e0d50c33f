package types

import (
	"time"
)

// TimeStamp is a UTC instant without a monotonic clock reading.
type TimeStamp struct {
	t time.Time
}

func Now() TimeStamp {
	return At(time.Now())
}

// At normalizes t to UTC and drops the monotonic reading so that
// encoded and decoded values compare equal.
func At(t time.Time) TimeStamp {
	return TimeStamp{t: t.UTC().Round(0)}
}

func (ts TimeStamp) Time() time.Time { return ts.t }

func (ts TimeStamp) IsZero() bool { return ts.t.IsZero() }

func (ts TimeStamp) Sub(other TimeStamp) time.Duration {
	return ts.t.Sub(other.t)
}

func (ts TimeStamp) Add(d time.Duration) TimeStamp {
	return At(ts.t.Add(d))
}

func (ts TimeStamp) Equal(other TimeStamp) bool {
	return ts.t.Equal(other.t)
}

func (ts TimeStamp) Before(other TimeStamp) bool {
	return ts.t.Before(other.t)
}

func (ts TimeStamp) String() string {
	return ts.t.Format(time.RFC3339Nano)
}

func (ts TimeStamp) MarshalText() ([]byte, error) {
	return []byte(ts.String()), nil
}

func (ts *TimeStamp) UnmarshalText(data []byte) error {
	t, err := time.Parse(time.RFC3339Nano, string(data))
	if err != nil {
		return err
	}
	*ts = At(t)
	return nil
}
