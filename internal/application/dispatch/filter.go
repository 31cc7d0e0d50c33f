package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Knetic/govaluate"

	"github.com/execution-hub/fnhub/internal/domain/function"
	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
)

// ExpressionFilter narrows candidates with a boolean expression evaluated
// per worker, e.g. `address =~ "^10[.]" && heartbeatAge < 10`.
//
// Parameters: id, address, status, heartbeatAge (seconds), function, entrypoint, input.
type ExpressionFilter struct {
	source string
	expr   *govaluate.EvaluableExpression
	now    func() types.TimeStamp
}

// NewExpressionFilter compiles the expression. An empty expression yields nil.
func NewExpressionFilter(source string) (*ExpressionFilter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil
	}
	expr, err := govaluate.NewEvaluableExpression(source)
	if err != nil {
		return nil, fmt.Errorf("invalid worker filter: %w", err)
	}
	return &ExpressionFilter{source: source, expr: expr, now: types.Now}, nil
}

func (f *ExpressionFilter) String() string { return f.source }

// Filter keeps the candidates for which the expression is true.
func (f *ExpressionFilter) Filter(fn function.Function, candidates []worker.Worker) ([]worker.Worker, error) {
	now := f.now()
	out := make([]worker.Worker, 0, len(candidates))
	for _, w := range candidates {
		params := map[string]interface{}{
			"id":           w.ID.String(),
			"address":      w.Address,
			"status":       string(w.Status),
			"heartbeatAge": now.Sub(w.LastHeartbeat).Round(time.Millisecond).Seconds(),
			"function":     fn.Name,
			"entrypoint":   fn.Runtime.Entrypoint,
			"input":        fn.InputType.String(),
		}
		result, err := f.expr.Evaluate(params)
		if err != nil {
			return nil, err
		}
		keep, ok := result.(bool)
		if !ok {
			return nil, errors.New("worker filter did not evaluate to boolean")
		}
		if keep {
			out = append(out, w)
		}
	}
	return out, nil
}
