package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cwinters/pocketmoney/internal/model"
)

type CompletionStore struct {
	db *sql.DB
}

func NewCompletionStore(db *sql.DB) *CompletionStore {
	return &CompletionStore{db: db}
}

const completionCols = `id, assignment_id, date, completed_by, completed_at, status, verified_by, verified_at, rejection_reason, notes`

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.TaskCompletion, error) {
	var c model.TaskCompletion
	var date string
	var verifiedBy sql.NullInt64
	var verifiedAt sql.NullTime

	err := scanner.Scan(
		&c.ID, &c.AssignmentID, &date, &c.CompletedBy, &c.CompletedAt,
		&c.Status, &verifiedBy, &verifiedAt, &c.RejectionReason, &c.Notes,
	)
	if err != nil {
		return nil, err
	}

	c.Date, err = parseDate(date)
	if err != nil {
		return nil, fmt.Errorf("completion date: %w", err)
	}
	if verifiedBy.Valid {
		c.VerifiedBy = &verifiedBy.Int64
	}
	if verifiedAt.Valid {
		c.VerifiedAt = &verifiedAt.Time
	}
	return &c, nil
}

// Create records a completion for a date. A second completion for the
// same assignment and date returns ErrConflict.
func (s *CompletionStore) Create(assignmentID int64, date time.Time, completedBy int64, notes string) (*model.TaskCompletion, error) {
	result, err := s.db.Exec(
		`INSERT INTO task_completions (assignment_id, date, completed_by, notes) VALUES (?, ?, ?, ?)`,
		assignmentID, fmtDate(date), completedBy, notes,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("completion for assignment %d on %s: %w", assignmentID, fmtDate(date), ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *CompletionStore) GetByID(id int64) (*model.TaskCompletion, error) {
	row := s.db.QueryRow(`SELECT `+completionCols+` FROM task_completions WHERE id = ?`, id)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

// ListInRange returns completions whose date falls in [from, to],
// oldest first.
func (s *CompletionStore) ListInRange(from, to time.Time) ([]model.TaskCompletion, error) {
	rows, err := s.db.Query(
		`SELECT `+completionCols+` FROM task_completions WHERE date >= ? AND date <= ? ORDER BY date ASC, id ASC`,
		fmtDate(from), fmtDate(to),
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()
	return collectCompletions(rows)
}

// ListPending returns completions awaiting verification, oldest first.
func (s *CompletionStore) ListPending() ([]model.TaskCompletion, error) {
	rows, err := s.db.Query(
		`SELECT ` + completionCols + ` FROM task_completions WHERE status = 'completed' ORDER BY completed_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending completions: %w", err)
	}
	defer rows.Close()
	return collectCompletions(rows)
}

func collectCompletions(rows *sql.Rows) ([]model.TaskCompletion, error) {
	var completions []model.TaskCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, *c)
	}
	return completions, rows.Err()
}

// Verify transitions a completion from completed to verified. Any other
// current status is a conflict.
func (s *CompletionStore) Verify(id, verifiedBy int64) (*model.TaskCompletion, error) {
	return s.transition(id, verifiedBy, model.CompletionVerified, "")
}

// Reject transitions a completion from completed to rejected with a
// reason for the user.
func (s *CompletionStore) Reject(id, verifiedBy int64, reason string) (*model.TaskCompletion, error) {
	return s.transition(id, verifiedBy, model.CompletionRejected, reason)
}

func (s *CompletionStore) transition(id, verifiedBy int64, status model.CompletionStatus, reason string) (*model.TaskCompletion, error) {
	c, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	if c.Status != model.CompletionCompleted {
		return nil, fmt.Errorf("completion %d is %s: %w", id, c.Status, ErrConflict)
	}

	_, err = s.db.Exec(
		`UPDATE task_completions SET status = ?, verified_by = ?, verified_at = ?, rejection_reason = ? WHERE id = ? AND status = 'completed'`,
		status, verifiedBy, time.Now().UTC(), reason, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update completion status: %w", err)
	}
	return s.GetByID(id)
}
