package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cwinters/pocketmoney/internal/model"
)

type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

const ledgerCols = `id, user_id, source_type, source_id, points_delta, note, created_by, created_at`

func scanLedgerEntry(scanner interface{ Scan(...any) error }) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var sourceID sql.NullInt64

	err := scanner.Scan(&e.ID, &e.UserID, &e.SourceType, &sourceID, &e.PointsDelta, &e.Note, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if sourceID.Valid {
		e.SourceID = &sourceID.Int64
	}
	return &e, nil
}

// Append writes an entry to the ledger. Entries are never updated or
// deleted; corrections are new adjustment entries.
func (s *LedgerStore) Append(e model.LedgerEntry) (*model.LedgerEntry, error) {
	result, err := s.db.Exec(
		`INSERT INTO points_ledger (user_id, source_type, source_id, points_delta, note, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.SourceType, e.SourceID, e.PointsDelta, e.Note, e.CreatedBy, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *LedgerStore) GetByID(id int64) (*model.LedgerEntry, error) {
	row := s.db.QueryRow(`SELECT `+ledgerCols+` FROM points_ledger WHERE id = ?`, id)
	e, err := scanLedgerEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

// HasEntry reports whether an entry already exists for the given source,
// used to keep award operations idempotent.
func (s *LedgerStore) HasEntry(sourceType model.SourceType, sourceID int64) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM points_ledger WHERE source_type = ? AND source_id = ?`,
		sourceType, sourceID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check ledger source: %w", err)
	}
	return count > 0, nil
}

// Balance returns the lifetime point total for a user.
func (s *LedgerStore) Balance(userID int64) (int, error) {
	var total int
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(points_delta), 0) FROM points_ledger WHERE user_id = ?`,
		userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return total, nil
}

// ListSince returns every entry created after the given time, oldest
// first, across all users.
func (s *LedgerStore) ListSince(after time.Time) ([]model.LedgerEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+ledgerCols+` FROM points_ledger WHERE created_at > ? ORDER BY created_at, id`,
		after,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger since: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// History returns a user's most recent entries, newest first.
func (s *LedgerStore) History(userID int64, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT `+ledgerCols+` FROM points_ledger WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger history: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Totals returns the point sum per active user since the given time,
// unranked, ordered by total descending then display name. A zero since
// covers all time. Admins are excluded unless includeAdmins is set.
func (s *LedgerStore) Totals(since time.Time, includeAdmins bool) ([]model.UserPoints, error) {
	query := `SELECT u.id, u.display_name, COALESCE(SUM(l.points_delta), 0) AS total
		FROM users u
		LEFT JOIN points_ledger l ON l.user_id = u.id AND l.created_at >= ?
		WHERE u.active = 1`
	if !includeAdmins {
		query += ` AND u.role = 'user'`
	}
	query += ` GROUP BY u.id ORDER BY total DESC, u.display_name ASC`

	rows, err := s.db.Query(query, since)
	if err != nil {
		return nil, fmt.Errorf("point totals: %w", err)
	}
	defer rows.Close()

	var totals []model.UserPoints
	for rows.Next() {
		var up model.UserPoints
		if err := rows.Scan(&up.UserID, &up.DisplayName, &up.TotalPoints); err != nil {
			return nil, fmt.Errorf("scan point total: %w", err)
		}
		totals = append(totals, up)
	}
	return totals, rows.Err()
}

// ResetPoints zeroes a user's balance by appending a compensating
// adjustment entry. A zero balance appends nothing.
func (s *LedgerStore) ResetPoints(userID, createdBy int64, note string) (*model.LedgerEntry, error) {
	balance, err := s.Balance(userID)
	if err != nil {
		return nil, err
	}
	if balance == 0 {
		return nil, nil
	}
	return s.Append(model.LedgerEntry{
		UserID:      userID,
		SourceType:  model.SourceAdjustment,
		PointsDelta: -balance,
		Note:        note,
		CreatedBy:   createdBy,
	})
}
