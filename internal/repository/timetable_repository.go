package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/Aashu-1911/sutra-backend/internal/models"
)

const timetableColumns = `id, branch, division, year, version, source, status, seed, dropped, headers, rows, meta, created_at`

// TimetableRepository persists versioned division timetables.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a timetable assigning the next version for its branch/division/year.
func (r *TimetableRepository) Create(ctx context.Context, exec sqlx.ExtContext, tt *models.Timetable) error {
	if tt == nil {
		return fmt.Errorf("timetable payload is nil")
	}
	if tt.Branch == "" || tt.Division == "" || tt.Year == "" {
		return fmt.Errorf("branch, division and year are required")
	}
	if tt.ID == "" {
		tt.ID = uuid.NewString()
	}
	if len(tt.Headers) == 0 {
		tt.Headers = types.JSONText(`[]`)
	}
	if len(tt.Rows) == 0 {
		tt.Rows = types.JSONText(`[]`)
	}
	if tt.CreatedAt.IsZero() {
		tt.CreatedAt = time.Now().UTC()
	}

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM timetables WHERE branch = $1 AND division = $2 AND year = $3`
	if err := sqlx.GetContext(ctx, target, &tt.Version, nextVersionQuery, tt.Branch, tt.Division, tt.Year); err != nil {
		return fmt.Errorf("compute next timetable version: %w", err)
	}

	const insertQuery = `
INSERT INTO timetables (` + timetableColumns + `)
VALUES (:id, :branch, :division, :year, :version, :source, :status, :seed, :dropped, :headers, :rows, :meta, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, tt); err != nil {
		return fmt.Errorf("insert timetable: %w", err)
	}
	return nil
}

// ListByScope returns matching timetables, newest version first, with the total count.
func (r *TimetableRepository) ListByScope(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	filter = filter.Normalize()

	baseQuery := `FROM timetables WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Branch != "" {
		conditions = append(conditions, fmt.Sprintf("branch = $%d", len(args)+1))
		args = append(args, filter.Branch)
	}
	if filter.Division != "" {
		conditions = append(conditions, fmt.Sprintf("division = $%d", len(args)+1))
		args = append(args, filter.Division)
	}
	if filter.Year != "" {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	offset := (filter.Page - 1) * filter.PageSize
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY branch, division, year, version DESC LIMIT %d OFFSET %d", timetableColumns, baseQuery, filter.PageSize, offset)

	var items []models.Timetable
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetables: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetables: %w", err)
	}
	return items, total, nil
}

// FindByID loads a timetable by its identifier.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetables WHERE id = $1`
	var tt models.Timetable
	if err := r.db.GetContext(ctx, &tt, query, id); err != nil {
		return nil, err
	}
	return &tt, nil
}

// Delete removes a stored timetable version.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM timetables WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
