package store

import (
	"errors"
	"testing"
	"time"

	"github.com/cwinters/pocketmoney/internal/model"
)

func setupTaskTest(t *testing.T) (*TaskStore, *UserStore, *model.User) {
	t.Helper()
	db := openTestDB(t)
	us := NewUserStore(db)
	admin := mustCreateUser(t, us, "mom", model.RoleAdmin)
	return NewTaskStore(db), us, admin
}

func TestTaskDefinitionCRUD(t *testing.T) {
	ts, _, admin := setupTaskTest(t)

	def, err := ts.CreateDefinition("Dishes", "Empty the dishwasher", 5, admin.ID)
	if err != nil {
		t.Fatalf("create definition: %v", err)
	}
	if def.Title != "Dishes" || def.DefaultPoints != 5 {
		t.Errorf("definition = %+v", def)
	}

	updated, err := ts.UpdateDefinition(def.ID, "Dishes", "Load and empty", 8, true)
	if err != nil {
		t.Fatalf("update definition: %v", err)
	}
	if updated.DefaultPoints != 8 {
		t.Errorf("points = %d, want 8", updated.DefaultPoints)
	}

	defs, err := ts.ListDefinitions(true)
	if err != nil {
		t.Fatalf("list definitions: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("len(defs) = %d, want 1", len(defs))
	}
}

func TestTaskDefinitionRejectsNonPositivePoints(t *testing.T) {
	ts, _, admin := setupTaskTest(t)

	if _, err := ts.CreateDefinition("Free", "", 0, admin.ID); !errors.Is(err, ErrInvalidPoints) {
		t.Fatalf("zero points err = %v, want ErrInvalidPoints", err)
	}
	if _, err := ts.CreateDefinition("Negative", "", -3, admin.ID); !errors.Is(err, ErrInvalidPoints) {
		t.Fatalf("negative points err = %v, want ErrInvalidPoints", err)
	}
}

func TestAssignmentCreateUserAndGroup(t *testing.T) {
	ts, us, admin := setupTaskTest(t)
	kid := mustCreateUser(t, us, "milo", model.RoleUser)
	def, err := ts.CreateDefinition("Dishes", "", 5, admin.ID)
	if err != nil {
		t.Fatalf("create definition: %v", err)
	}

	due := "17:00"
	a, err := ts.CreateAssignment(model.TaskAssignment{
		TaskDefinitionID: def.ID,
		Assignee:         model.AssignUser(kid.ID),
		ScheduleType:     model.ScheduleDaily,
		DueTime:          &due,
	})
	if err != nil {
		t.Fatalf("create user assignment: %v", err)
	}
	if a.Assignee.UserID == nil || *a.Assignee.UserID != kid.ID {
		t.Errorf("assignee = %+v, want user %d", a.Assignee, kid.ID)
	}
	if a.DueTime == nil || *a.DueTime != "17:00" {
		t.Errorf("due time = %v, want 17:00", a.DueTime)
	}

	g, err := ts.CreateAssignment(model.TaskAssignment{
		TaskDefinitionID: def.ID,
		Assignee:         model.AssignGroup(model.RoleUser),
		ScheduleType:     model.ScheduleWeekly,
		DaysOfWeek:       0b0100010, // Monday and Friday
	})
	if err != nil {
		t.Fatalf("create group assignment: %v", err)
	}
	if g.Assignee.Group == nil || *g.Assignee.Group != model.RoleUser {
		t.Errorf("assignee = %+v, want group user", g.Assignee)
	}
	if g.DaysOfWeek != 0b0100010 {
		t.Errorf("days = %07b, want 0100010", g.DaysOfWeek)
	}
}

func TestAssignmentRejectsInvalidAssignee(t *testing.T) {
	ts, us, admin := setupTaskTest(t)
	kid := mustCreateUser(t, us, "milo", model.RoleUser)
	def, err := ts.CreateDefinition("Dishes", "", 5, admin.ID)
	if err != nil {
		t.Fatalf("create definition: %v", err)
	}

	// Neither target.
	_, err = ts.CreateAssignment(model.TaskAssignment{
		TaskDefinitionID: def.ID,
		ScheduleType:     model.ScheduleDaily,
	})
	if !errors.Is(err, model.ErrInvalidAssignee) {
		t.Fatalf("empty assignee err = %v, want ErrInvalidAssignee", err)
	}

	// Both targets.
	role := model.RoleUser
	_, err = ts.CreateAssignment(model.TaskAssignment{
		TaskDefinitionID: def.ID,
		Assignee:         model.Assignee{UserID: &kid.ID, Group: &role},
		ScheduleType:     model.ScheduleDaily,
	})
	if !errors.Is(err, model.ErrInvalidAssignee) {
		t.Fatalf("double assignee err = %v, want ErrInvalidAssignee", err)
	}
}

func TestAssignmentDates(t *testing.T) {
	ts, us, admin := setupTaskTest(t)
	kid := mustCreateUser(t, us, "milo", model.RoleUser)
	def, err := ts.CreateDefinition("Project", "", 20, admin.ID)
	if err != nil {
		t.Fatalf("create definition: %v", err)
	}

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	a, err := ts.CreateAssignment(model.TaskAssignment{
		TaskDefinitionID: def.ID,
		Assignee:         model.AssignUser(kid.ID),
		ScheduleType:     model.ScheduleOnce,
		StartDate:        &start,
		EndDate:          &end,
	})
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if a.StartDate == nil || !a.StartDate.Equal(start) {
		t.Errorf("start date = %v, want %v", a.StartDate, start)
	}
	if a.EndDate == nil || !a.EndDate.Equal(end) {
		t.Errorf("end date = %v, want %v", a.EndDate, end)
	}
}

func TestDeactivateDefinitionCascades(t *testing.T) {
	ts, us, admin := setupTaskTest(t)
	kid := mustCreateUser(t, us, "milo", model.RoleUser)
	def, err := ts.CreateDefinition("Dishes", "", 5, admin.ID)
	if err != nil {
		t.Fatalf("create definition: %v", err)
	}
	a, err := ts.CreateAssignment(model.TaskAssignment{
		TaskDefinitionID: def.ID,
		Assignee:         model.AssignUser(kid.ID),
		ScheduleType:     model.ScheduleDaily,
	})
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	if err := ts.DeactivateDefinition(def.ID); err != nil {
		t.Fatalf("deactivate definition: %v", err)
	}

	active, err := ts.ListActiveAssignments()
	if err != nil {
		t.Fatalf("list active assignments: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active assignments = %d, want 0", len(active))
	}

	// Rows are kept for history.
	got, err := ts.GetAssignment(a.ID)
	if err != nil {
		t.Fatalf("get assignment: %v", err)
	}
	if got == nil || got.Active {
		t.Errorf("assignment = %+v, want inactive row", got)
	}
}
