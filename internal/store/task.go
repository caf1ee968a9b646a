package store

import (
	"database/sql"
	"fmt"

	"github.com/cwinters/pocketmoney/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskDefCols = `id, title, description, default_points, active, created_by, created_at`

func scanTaskDef(scanner interface{ Scan(...any) error }) (*model.TaskDefinition, error) {
	var d model.TaskDefinition
	var active int
	err := scanner.Scan(&d.ID, &d.Title, &d.Description, &d.DefaultPoints, &active, &d.CreatedBy, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.Active = active != 0
	return &d, nil
}

func (s *TaskStore) CreateDefinition(title, description string, points int, createdBy int64) (*model.TaskDefinition, error) {
	if points <= 0 {
		return nil, fmt.Errorf("points must be positive: %w", ErrInvalidPoints)
	}
	result, err := s.db.Exec(
		`INSERT INTO task_definitions (title, description, default_points, created_by) VALUES (?, ?, ?, ?)`,
		title, description, points, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task definition: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetDefinition(id)
}

func (s *TaskStore) GetDefinition(id int64) (*model.TaskDefinition, error) {
	row := s.db.QueryRow(`SELECT `+taskDefCols+` FROM task_definitions WHERE id = ?`, id)
	d, err := scanTaskDef(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task definition: %w", err)
	}
	return d, nil
}

func (s *TaskStore) ListDefinitions(activeOnly bool) ([]model.TaskDefinition, error) {
	query := `SELECT ` + taskDefCols + ` FROM task_definitions`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY title ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list task definitions: %w", err)
	}
	defer rows.Close()

	var defs []model.TaskDefinition
	for rows.Next() {
		d, err := scanTaskDef(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task definition: %w", err)
		}
		defs = append(defs, *d)
	}
	return defs, rows.Err()
}

func (s *TaskStore) UpdateDefinition(id int64, title, description string, points int, active bool) (*model.TaskDefinition, error) {
	if points <= 0 {
		return nil, fmt.Errorf("points must be positive: %w", ErrInvalidPoints)
	}
	result, err := s.db.Exec(
		`UPDATE task_definitions SET title = ?, description = ?, default_points = ?, active = ? WHERE id = ?`,
		title, description, points, boolToInt(active), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task definition: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetDefinition(id)
}

// DeactivateDefinition soft-deletes a definition and its assignments so
// history stays intact.
func (s *TaskStore) DeactivateDefinition(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE task_definitions SET active = 0 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deactivate definition: %w", err)
	}
	if _, err := tx.Exec(`UPDATE task_assignments SET active = 0 WHERE task_definition_id = ?`, id); err != nil {
		return fmt.Errorf("deactivate assignments: %w", err)
	}
	return tx.Commit()
}

const assignmentCols = `id, task_definition_id, assigned_user_id, assigned_role, schedule_type, days_of_week, start_date, end_date, due_time, active, created_at`

func scanAssignment(scanner interface{ Scan(...any) error }) (*model.TaskAssignment, error) {
	var a model.TaskAssignment
	var userID sql.NullInt64
	var role, startDate, endDate, dueTime sql.NullString
	var days int
	var active int

	err := scanner.Scan(
		&a.ID, &a.TaskDefinitionID, &userID, &role, &a.ScheduleType,
		&days, &startDate, &endDate, &dueTime, &active, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		a.Assignee = model.AssignUser(userID.Int64)
	} else if role.Valid {
		a.Assignee = model.AssignGroup(model.Role(role.String))
	}
	a.DaysOfWeek = uint8(days)
	if startDate.Valid {
		t, err := parseDate(startDate.String)
		if err != nil {
			return nil, fmt.Errorf("start date: %w", err)
		}
		a.StartDate = &t
	}
	if endDate.Valid {
		t, err := parseDate(endDate.String)
		if err != nil {
			return nil, fmt.Errorf("end date: %w", err)
		}
		a.EndDate = &t
	}
	if dueTime.Valid {
		a.DueTime = &dueTime.String
	}
	a.Active = active != 0
	return &a, nil
}

func (s *TaskStore) CreateAssignment(a model.TaskAssignment) (*model.TaskAssignment, error) {
	if err := a.Assignee.Validate(); err != nil {
		return nil, err
	}
	if !a.ScheduleType.Valid() {
		return nil, fmt.Errorf("invalid schedule type %q", a.ScheduleType)
	}

	var startDate, endDate any
	if a.StartDate != nil {
		startDate = fmtDate(*a.StartDate)
	}
	if a.EndDate != nil {
		endDate = fmtDate(*a.EndDate)
	}

	result, err := s.db.Exec(
		`INSERT INTO task_assignments (task_definition_id, assigned_user_id, assigned_role, schedule_type, days_of_week, start_date, end_date, due_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.TaskDefinitionID, a.Assignee.UserID, a.Assignee.Group,
		a.ScheduleType, int(a.DaysOfWeek), startDate, endDate, a.DueTime,
	)
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetAssignment(id)
}

func (s *TaskStore) GetAssignment(id int64) (*model.TaskAssignment, error) {
	row := s.db.QueryRow(`SELECT `+assignmentCols+` FROM task_assignments WHERE id = ?`, id)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

// ListActiveAssignments returns all active assignments whose definition is
// also active.
func (s *TaskStore) ListActiveAssignments() ([]model.TaskAssignment, error) {
	rows, err := s.db.Query(
		`SELECT a.id, a.task_definition_id, a.assigned_user_id, a.assigned_role, a.schedule_type, a.days_of_week, a.start_date, a.end_date, a.due_time, a.active, a.created_at
		 FROM task_assignments a
		 JOIN task_definitions d ON d.id = a.task_definition_id
		 WHERE a.active = 1 AND d.active = 1
		 ORDER BY a.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.TaskAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

func (s *TaskStore) ListAssignmentsForDefinition(defID int64) ([]model.TaskAssignment, error) {
	rows, err := s.db.Query(`SELECT `+assignmentCols+` FROM task_assignments WHERE task_definition_id = ? ORDER BY id ASC`, defID)
	if err != nil {
		return nil, fmt.Errorf("list assignments for definition: %w", err)
	}
	defer rows.Close()

	var assignments []model.TaskAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

func (s *TaskStore) UpdateAssignment(a model.TaskAssignment) (*model.TaskAssignment, error) {
	if err := a.Assignee.Validate(); err != nil {
		return nil, err
	}
	if !a.ScheduleType.Valid() {
		return nil, fmt.Errorf("invalid schedule type %q", a.ScheduleType)
	}

	var startDate, endDate any
	if a.StartDate != nil {
		startDate = fmtDate(*a.StartDate)
	}
	if a.EndDate != nil {
		endDate = fmtDate(*a.EndDate)
	}

	result, err := s.db.Exec(
		`UPDATE task_assignments SET assigned_user_id = ?, assigned_role = ?, schedule_type = ?, days_of_week = ?, start_date = ?, end_date = ?, due_time = ?, active = ? WHERE id = ?`,
		a.Assignee.UserID, a.Assignee.Group, a.ScheduleType, int(a.DaysOfWeek),
		startDate, endDate, a.DueTime, boolToInt(a.Active), a.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update assignment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetAssignment(a.ID)
}

func (s *TaskStore) DeactivateAssignment(id int64) error {
	_, err := s.db.Exec(`UPDATE task_assignments SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate assignment: %w", err)
	}
	return nil
}
