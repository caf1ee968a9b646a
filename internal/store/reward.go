package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cwinters/pocketmoney/internal/model"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

const rewardCols = `id, title, description, cost_points, active, created_at`

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var active int
	err := scanner.Scan(&r.ID, &r.Title, &r.Description, &r.CostPoints, &active, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Active = active != 0
	return &r, nil
}

func (s *RewardStore) Create(title, description string, costPoints int) (*model.Reward, error) {
	if costPoints <= 0 {
		return nil, fmt.Errorf("cost must be positive: %w", ErrInvalidPoints)
	}
	result, err := s.db.Exec(
		`INSERT INTO rewards (title, description, cost_points) VALUES (?, ?, ?)`,
		title, description, costPoints,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

func (s *RewardStore) List(activeOnly bool) ([]model.Reward, error) {
	query := `SELECT ` + rewardCols + ` FROM rewards`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY cost_points ASC, title ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(id int64, title, description string, costPoints int, active bool) (*model.Reward, error) {
	if costPoints <= 0 {
		return nil, fmt.Errorf("cost must be positive: %w", ErrInvalidPoints)
	}
	result, err := s.db.Exec(
		`UPDATE rewards SET title = ?, description = ?, cost_points = ?, active = ? WHERE id = ?`,
		title, description, costPoints, boolToInt(active), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetByID(id)
}

func (s *RewardStore) Deactivate(id int64) error {
	_, err := s.db.Exec(`UPDATE rewards SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate reward: %w", err)
	}
	return nil
}

// Redeem spends points on a reward. The balance check and the negative
// ledger entry happen in one transaction so a user cannot overspend by
// racing two redemptions.
func (s *RewardStore) Redeem(rewardID, userID int64) (*model.RewardRedemption, error) {
	r, err := s.GetByID(rewardID)
	if err != nil {
		return nil, err
	}
	if r == nil || !r.Active {
		return nil, sql.ErrNoRows
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance int
	err = tx.QueryRow(`SELECT COALESCE(SUM(points_delta), 0) FROM points_ledger WHERE user_id = ?`, userID).Scan(&balance)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	if balance < r.CostPoints {
		return nil, fmt.Errorf("balance %d, need %d: %w", balance, r.CostPoints, ErrInsufficientPoints)
	}

	now := time.Now().UTC()
	result, err := tx.Exec(
		`INSERT INTO reward_redemptions (reward_id, user_id, points_spent, redeemed_at) VALUES (?, ?, ?, ?)`,
		rewardID, userID, r.CostPoints, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	redemptionID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO points_ledger (user_id, source_type, source_id, points_delta, note, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, model.SourceRewardRedeemed, redemptionID, -r.CostPoints, r.Title, userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit redemption: %w", err)
	}

	return &model.RewardRedemption{
		ID:          redemptionID,
		RewardID:    rewardID,
		UserID:      userID,
		PointsSpent: r.CostPoints,
		RedeemedAt:  now,
	}, nil
}

// Redemptions returns a user's redemption history, newest first.
func (s *RewardStore) Redemptions(userID int64, limit int) ([]model.RewardRedemption, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, reward_id, user_id, points_spent, redeemed_at FROM reward_redemptions WHERE user_id = ? ORDER BY redeemed_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	var redemptions []model.RewardRedemption
	for rows.Next() {
		var rr model.RewardRedemption
		if err := rows.Scan(&rr.ID, &rr.RewardID, &rr.UserID, &rr.PointsSpent, &rr.RedeemedAt); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, rr)
	}
	return redemptions, rows.Err()
}
