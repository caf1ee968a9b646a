package store

import (
	"database/sql"
	"fmt"

	"github.com/cwinters/pocketmoney/internal/model"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

func (s *BackupStore) Record(filename string, sizeBytes int64, destination string) (*model.Backup, error) {
	result, err := s.db.Exec(
		`INSERT INTO backups (filename, size_bytes, destination) VALUES (?, ?, ?)`,
		filename, sizeBytes, destination,
	)
	if err != nil {
		return nil, fmt.Errorf("record backup: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var b model.Backup
	err = s.db.QueryRow(
		`SELECT id, filename, size_bytes, destination, created_at FROM backups WHERE id = ?`, id,
	).Scan(&b.ID, &b.Filename, &b.SizeBytes, &b.Destination, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	return &b, nil
}

func (s *BackupStore) List(limit int) ([]model.Backup, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, filename, size_bytes, destination, created_at FROM backups ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		var b model.Backup
		if err := rows.Scan(&b.ID, &b.Filename, &b.SizeBytes, &b.Destination, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}
