package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/execution-hub/fnhub/internal/domain/execution"
	"github.com/execution-hub/fnhub/internal/domain/types"
)

// ExecutionRepository implements execution.Repository.
type ExecutionRepository struct {
	pool *pgxpool.Pool
}

var _ execution.Repository = (*ExecutionRepository)(nil)

func NewExecutionRepository(pool *pgxpool.Pool) *ExecutionRepository {
	return &ExecutionRepository{pool: pool}
}

func (r *ExecutionRepository) Create(ctx context.Context, exec *execution.Execution) error {
	row, err := toRow(exec)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO executions (execution_id, target_function, status, worker_id, request, result, diagnostic, created_at, updated_at)
		VALUES ($1::uuid,$2::uuid,$3,$4::uuid,$5,$6,$7,$8,$9)
	`, row.id, row.target, row.status, row.worker, row.request, row.result, row.diagnostic, row.createdAt, time.Now().UTC())
	return err
}

func (r *ExecutionRepository) Update(ctx context.Context, exec *execution.Execution) error {
	row, err := toRow(exec)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE executions SET status=$1, worker_id=$2::uuid, result=$3, diagnostic=$4, updated_at=$5
		WHERE execution_id=$6::uuid
	`, row.status, row.worker, row.result, row.diagnostic, time.Now().UTC(), row.id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return execution.ErrNotFound
	}
	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id types.ID) (*execution.Execution, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT execution_id::text, status, worker_id::text, request, result, diagnostic
		FROM executions WHERE execution_id=$1::uuid
	`, id.String())
	exec, err := scanExecution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return exec, err
}

func (r *ExecutionRepository) List(ctx context.Context, limit, offset int) ([]*execution.Execution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT execution_id::text, status, worker_id::text, request, result, diagnostic
		FROM executions ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*execution.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

type executionRow struct {
	id         string
	target     string
	status     string
	worker     *string
	request    []byte
	result     []byte
	diagnostic []byte
	createdAt  time.Time
}

func toRow(exec *execution.Execution) (*executionRow, error) {
	request, err := json.Marshal(exec.Request)
	if err != nil {
		return nil, err
	}
	row := &executionRow{
		id:        exec.ID.String(),
		target:    exec.Request.TargetFunction.String(),
		status:    string(exec.Status),
		request:   request,
		createdAt: exec.Request.CreateTime.Time(),
	}
	if exec.Worker != nil {
		w := exec.Worker.String()
		row.worker = &w
	}
	if exec.Result != nil {
		if row.result, err = json.Marshal(exec.Result); err != nil {
			return nil, err
		}
	}
	if exec.Diagnostic != nil {
		if row.diagnostic, err = json.Marshal(exec.Diagnostic); err != nil {
			return nil, err
		}
	}
	return row, nil
}

func scanExecution(row pgx.Row) (*execution.Execution, error) {
	var (
		id, status                   string
		workerID                     *string
		request, result, diagnostic []byte
	)
	if err := row.Scan(&id, &status, &workerID, &request, &result, &diagnostic); err != nil {
		return nil, err
	}
	var exec execution.Execution
	var err error
	if exec.ID, err = types.ParseID(id); err != nil {
		return nil, err
	}
	exec.Status = execution.Status(status)
	if workerID != nil {
		w, err := types.ParseID(*workerID)
		if err != nil {
			return nil, err
		}
		exec.Worker = &w
	}
	if err := json.Unmarshal(request, &exec.Request); err != nil {
		return nil, err
	}
	if len(result) > 0 {
		exec.Result = &execution.Result{}
		if err := json.Unmarshal(result, exec.Result); err != nil {
			return nil, err
		}
	}
	if len(diagnostic) > 0 {
		exec.Diagnostic = &execution.Diagnostic{}
		if err := json.Unmarshal(diagnostic, exec.Diagnostic); err != nil {
			return nil, err
		}
	}
	return &exec, nil
}
