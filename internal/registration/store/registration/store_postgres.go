package registration

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"manasik/internal/registration/models"
	"manasik/pkg/platform/sentinel"

	id "manasik/pkg/domain"
)

// PostgresRegistrationStore persists progress records in PostgreSQL. The
// completed-step set lives in registration_completed_steps and is rewritten
// inside the same transaction as the parent row.
type PostgresRegistrationStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registration store.
func NewPostgres(db *sql.DB) *PostgresRegistrationStore {
	return &PostgresRegistrationStore{db: db}
}

func (s *PostgresRegistrationStore) CreateIfAbsent(ctx context.Context, reg *models.Registration) (*models.Registration, bool, error) {
	query := `
		INSERT INTO registrations (id, user_id, current_step_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		reg.ID.String(), reg.UserID.String(), reg.CurrentStepID.String(),
		string(reg.Status), reg.CreatedAt, reg.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("create registration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("create registration rows affected: %w", err)
	}
	if affected == 1 {
		return cloneRegistration(reg), true, nil
	}

	// Another writer won the race; return their record.
	existing, err := s.FindByUser(ctx, reg.UserID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *PostgresRegistrationStore) FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	query := `
		SELECT id, user_id, current_step_id, status, created_at, updated_at
		FROM registrations WHERE id = $1
	`
	reg, err := scanRegistration(s.db.QueryRowContext(ctx, query, regID.String()))
	if err != nil {
		return nil, err
	}
	if err := s.loadCompletedSteps(ctx, s.db, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *PostgresRegistrationStore) FindByUser(ctx context.Context, userID id.UserID) (*models.Registration, error) {
	query := `
		SELECT id, user_id, current_step_id, status, created_at, updated_at
		FROM registrations WHERE user_id = $1
	`
	reg, err := scanRegistration(s.db.QueryRowContext(ctx, query, userID.String()))
	if err != nil {
		return nil, err
	}
	if err := s.loadCompletedSteps(ctx, s.db, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Execute locks the row with FOR UPDATE, runs validate then mutate, and
// persists the result in the same transaction.
func (s *PostgresRegistrationStore) Execute(ctx context.Context, regID id.RegistrationID,
	validate func(*models.Registration) error,
	mutate func(*models.Registration)) (*models.Registration, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin registration tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, user_id, current_step_id, status, created_at, updated_at
		FROM registrations WHERE id = $1 FOR UPDATE
	`
	reg, err := scanRegistration(tx.QueryRowContext(ctx, query, regID.String()))
	if err != nil {
		return nil, err
	}
	if err := s.loadCompletedSteps(ctx, tx, reg); err != nil {
		return nil, err
	}

	if err := validate(reg); err != nil {
		return reg, err
	}
	mutate(reg)

	update := `
		UPDATE registrations
		SET current_step_id = $2, status = $3, updated_at = $4
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		reg.ID.String(), reg.CurrentStepID.String(), string(reg.Status), reg.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update registration: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM registration_completed_steps WHERE registration_id = $1`,
		reg.ID.String()); err != nil {
		return nil, fmt.Errorf("clear completed steps: %w", err)
	}
	if len(reg.CompletedStepIDs) > 0 {
		stepIDs := make([]string, len(reg.CompletedStepIDs))
		for i, stepID := range reg.CompletedStepIDs {
			stepIDs[i] = stepID.String()
		}
		insert := `
			INSERT INTO registration_completed_steps (registration_id, step_id)
			SELECT $1, unnest($2::uuid[])
		`
		if _, err := tx.ExecContext(ctx, insert, reg.ID.String(), pq.Array(stepIDs)); err != nil {
			return nil, fmt.Errorf("write completed steps: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit registration tx: %w", err)
	}
	return reg, nil
}

func (s *PostgresRegistrationStore) ReferencesStep(ctx context.Context, stepID id.StepID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM registrations WHERE current_step_id = $1
			UNION ALL
			SELECT 1 FROM registration_completed_steps WHERE step_id = $1
		)
	`
	var referenced bool
	if err := s.db.QueryRowContext(ctx, query, stepID.String()).Scan(&referenced); err != nil {
		return false, fmt.Errorf("check step references: %w", err)
	}
	return referenced, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresRegistrationStore) loadCompletedSteps(ctx context.Context, q querier, reg *models.Registration) error {
	rows, err := q.QueryContext(ctx,
		`SELECT step_id FROM registration_completed_steps WHERE registration_id = $1`,
		reg.ID.String())
	if err != nil {
		return fmt.Errorf("load completed steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("scan completed step: %w", err)
		}
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse completed step id: %w", err)
		}
		reg.CompletedStepIDs = append(reg.CompletedStepIDs, id.StepID(parsed))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate completed steps: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var (
		reg        models.Registration
		rawID      string
		rawUserID  string
		rawStepID  string
		rawStatus  string
	)
	err := row.Scan(&rawID, &rawUserID, &rawStepID, &rawStatus, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("registration not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan registration: %w", err)
	}

	parsedID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse registration id: %w", err)
	}
	parsedUser, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	parsedStep, err := uuid.Parse(rawStepID)
	if err != nil {
		return nil, fmt.Errorf("parse current step id: %w", err)
	}
	reg.ID = id.RegistrationID(parsedID)
	reg.UserID = id.UserID(parsedUser)
	reg.CurrentStepID = id.StepID(parsedStep)
	reg.Status = models.RegistrationStatus(rawStatus)
	return &reg, nil
}
