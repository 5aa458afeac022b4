package step

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"manasik/internal/registration/models"
	"manasik/pkg/platform/sentinel"

	id "manasik/pkg/domain"
)

const uniqueViolation = "23505"

// PostgresStepStore persists catalog steps in PostgreSQL.
type PostgresStepStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed step store.
func NewPostgres(db *sql.DB) *PostgresStepStore {
	return &PostgresStepStore{db: db}
}

const stepColumns = `id, code, title, description, action_type, data_scope, step_order, is_active, created_at, updated_at`

func (s *PostgresStepStore) CreateIfScopeAvailable(ctx context.Context, step *models.Step) error {
	query := `
		INSERT INTO registration_steps (` + stepColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		step.ID.String(), step.Code, step.Title, step.Description,
		string(step.ActionType), string(step.DataScope), step.Order, step.IsActive,
		step.CreatedAt, step.UpdatedAt)
	if err != nil {
		return translateUniqueViolation(err, "create step")
	}
	return nil
}

func (s *PostgresStepStore) FindByID(ctx context.Context, stepID id.StepID) (*models.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM registration_steps WHERE id = $1`
	return scanStep(s.db.QueryRowContext(ctx, query, stepID.String()))
}

func (s *PostgresStepStore) FindByCode(ctx context.Context, code string) (*models.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM registration_steps WHERE code = $1`
	return scanStep(s.db.QueryRowContext(ctx, query, code))
}

func (s *PostgresStepStore) List(ctx context.Context) ([]*models.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM registration_steps ORDER BY step_order ASC`
	return s.querySteps(ctx, query)
}

func (s *PostgresStepStore) ListActiveOrdered(ctx context.Context) ([]*models.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM registration_steps WHERE is_active ORDER BY step_order ASC`
	return s.querySteps(ctx, query)
}

func (s *PostgresStepStore) Update(ctx context.Context, step *models.Step) error {
	query := `
		UPDATE registration_steps
		SET code = $2, title = $3, description = $4, action_type = $5,
			data_scope = $6, step_order = $7, is_active = $8, updated_at = $9
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		step.ID.String(), step.Code, step.Title, step.Description,
		string(step.ActionType), string(step.DataScope), step.Order, step.IsActive,
		step.UpdatedAt)
	if err != nil {
		return translateUniqueViolation(err, "update step")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update step rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("step not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStepStore) Delete(ctx context.Context, stepID id.StepID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM registration_steps WHERE id = $1`, stepID.String())
	if err != nil {
		return fmt.Errorf("delete step: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete step rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("step not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStepStore) querySteps(ctx context.Context, query string, args ...any) ([]*models.Step, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStep(row rowScanner) (*models.Step, error) {
	var (
		step       models.Step
		rawID      string
		actionType string
		dataScope  string
	)
	err := row.Scan(&rawID, &step.Code, &step.Title, &step.Description,
		&actionType, &dataScope, &step.Order, &step.IsActive,
		&step.CreatedAt, &step.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("step not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan step: %w", err)
	}
	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse step id: %w", err)
	}
	step.ID = id.StepID(parsed)
	step.ActionType = models.StepAction(actionType)
	step.DataScope = models.StepDataScope(dataScope)
	return &step, nil
}

// translateUniqueViolation maps PostgreSQL unique violations onto the store
// error contract: the data-scope constraint signals ErrAlreadyUsed, any other
// unique constraint signals ErrConflict.
func translateUniqueViolation(err error, op string) error {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		if strings.Contains(pqErr.Constraint, "data_scope") {
			return fmt.Errorf("%s: data scope taken: %w", op, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("%s: step code or order taken: %w", op, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
