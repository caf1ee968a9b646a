package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwinters/pocketmoney/internal/auth"
	"github.com/cwinters/pocketmoney/internal/model"
	"github.com/cwinters/pocketmoney/internal/schedule"
	"github.com/cwinters/pocketmoney/internal/store"
	"github.com/cwinters/pocketmoney/internal/websocket"
)

const maxCalendarDays = 62

type TaskHandler struct {
	tasks       *store.TaskStore
	completions *store.CompletionStore
	settings    *store.SettingsStore
	users       *store.UserStore
	hub         *websocket.Hub
	logger      *slog.Logger
	now         func() time.Time
}

func NewTaskHandler(ts *store.TaskStore, cs *store.CompletionStore, ss *store.SettingsStore, us *store.UserStore, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:       ts,
		completions: cs,
		settings:    ss,
		users:       us,
		hub:         hub,
		logger:      logger,
		now:         time.Now,
	}
}

func (h *TaskHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

type taskDefinitionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	Active      *bool  `json:"active"`
}

func (h *TaskHandler) CreateDefinition(w http.ResponseWriter, r *http.Request) {
	var req taskDefinitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	id, _ := auth.FromContext(r.Context())
	def, err := h.tasks.CreateDefinition(req.Title, req.Description, req.Points, id.UserID)
	if err != nil {
		writeStoreError(w, err, "failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (h *TaskHandler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") == ""
	defs, err := h.tasks.ListDefinitions(activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if defs == nil {
		defs = []model.TaskDefinition{}
	}
	writeJSON(w, http.StatusOK, defs)
}

// GetDefinition returns one task with every assignment hanging off it,
// active or not, for the admin edit screen.
func (h *TaskHandler) GetDefinition(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	def, err := h.tasks.GetDefinition(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	if def == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	assignments, err := h.tasks.ListAssignmentsForDefinition(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load assignments")
		return
	}
	if assignments == nil {
		assignments = []model.TaskAssignment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"definition":  def,
		"assignments": assignments,
	})
}

func (h *TaskHandler) UpdateDefinition(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req taskDefinitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	def, err := h.tasks.UpdateDefinition(id, req.Title, req.Description, req.Points, active)
	if err != nil {
		writeStoreError(w, err, "failed to update task")
		return
	}
	if def == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	h.broadcast(websocket.Event{Type: websocket.EventAssignmentChanged, ID: def.ID})
	writeJSON(w, http.StatusOK, def)
}

func (h *TaskHandler) DeleteDefinition(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.tasks.DeactivateDefinition(id); err != nil {
		writeStoreError(w, err, "failed to delete task")
		return
	}
	h.broadcast(websocket.Event{Type: websocket.EventAssignmentChanged, ID: id})
	w.WriteHeader(http.StatusNoContent)
}

type assignmentRequest struct {
	TaskDefinitionID int64   `json:"task_definition_id"`
	UserID           *int64  `json:"user_id"`
	Group            *string `json:"group"`
	ScheduleType     string  `json:"schedule_type"`
	DaysOfWeek       uint8   `json:"days_of_week"`
	StartDate        *string `json:"start_date"`
	EndDate          *string `json:"end_date"`
	DueTime          *string `json:"due_time"`
	Active           *bool   `json:"active"`
}

func (req *assignmentRequest) toModel() (model.TaskAssignment, error) {
	a := model.TaskAssignment{
		TaskDefinitionID: req.TaskDefinitionID,
		ScheduleType:     model.ScheduleType(req.ScheduleType),
		DaysOfWeek:       req.DaysOfWeek,
		Active:           true,
	}
	if req.UserID != nil {
		a.Assignee = model.AssignUser(*req.UserID)
	} else if req.Group != nil {
		a.Assignee = model.AssignGroup(model.Role(*req.Group))
	}
	if req.Active != nil {
		a.Active = *req.Active
	}

	if req.StartDate != nil {
		t, err := time.ParseInLocation("2006-01-02", *req.StartDate, time.UTC)
		if err != nil {
			return a, err
		}
		a.StartDate = &t
	}
	if req.EndDate != nil {
		t, err := time.ParseInLocation("2006-01-02", *req.EndDate, time.UTC)
		if err != nil {
			return a, err
		}
		a.EndDate = &t
	}
	if req.DueTime != nil {
		if _, err := schedule.ParseClock(*req.DueTime); err != nil {
			return a, err
		}
		a.DueTime = req.DueTime
	}
	return a, nil
}

func (h *TaskHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	a, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	def, err := h.tasks.GetDefinition(a.TaskDefinitionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	if def == nil {
		writeError(w, http.StatusBadRequest, "unknown task definition")
		return
	}

	created, err := h.tasks.CreateAssignment(a)
	if err != nil {
		writeStoreError(w, err, "failed to create assignment")
		return
	}
	h.broadcast(websocket.Event{Type: websocket.EventAssignmentChanged, ID: created.ID})
	writeJSON(w, http.StatusCreated, created)
}

func (h *TaskHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.tasks.ListActiveAssignments()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list assignments")
		return
	}
	if assignments == nil {
		assignments = []model.TaskAssignment{}
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (h *TaskHandler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	a, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.ID = id

	existing, err := h.tasks.GetAssignment(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load assignment")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}
	a.TaskDefinitionID = existing.TaskDefinitionID

	updated, err := h.tasks.UpdateAssignment(a)
	if err != nil {
		writeStoreError(w, err, "failed to update assignment")
		return
	}
	h.broadcast(websocket.Event{Type: websocket.EventAssignmentChanged, ID: id})
	writeJSON(w, http.StatusOK, updated)
}

func (h *TaskHandler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.tasks.DeactivateAssignment(id); err != nil {
		writeStoreError(w, err, "failed to delete assignment")
		return
	}
	h.broadcast(websocket.Event{Type: websocket.EventAssignmentChanged, ID: id})
	w.WriteHeader(http.StatusNoContent)
}

// taskItem is one task as shown on the today or calendar view.
type taskItem struct {
	AssignmentID int64                 `json:"assignment_id"`
	Title        string                `json:"title"`
	Description  string                `json:"description,omitempty"`
	Points       int                   `json:"points"`
	DueTime      *string               `json:"due_time,omitempty"`
	ScheduleType model.ScheduleType    `json:"schedule_type"`
	Completion   *model.TaskCompletion `json:"completion,omitempty"`
}

// Today returns the caller's tasks due today, including tasks already
// completed today so they render as checked off.
func (h *TaskHandler) Today(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	settings := h.loadSettings(w)
	if settings == nil {
		return
	}
	today, clock := schedule.LocalToday(h.now(), settings.Location())

	items, err := h.dueItems(id, settings, today, clock, true)
	if err != nil {
		h.logger.Error("build today view", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  today.Format("2006-01-02"),
		"tasks": items,
	})
}

// Calendar returns the caller's due tasks per day over a date range. The
// due-time cutoff does not apply when rendering a range.
func (h *TaskHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	from, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("from"), time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	to, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("to"), time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date")
		return
	}
	if to.Before(from) || to.Sub(from) > maxCalendarDays*24*time.Hour {
		writeError(w, http.StatusBadRequest, "invalid date range")
		return
	}

	settings := h.loadSettings(w)
	if settings == nil {
		return
	}

	days := map[string][]taskItem{}
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		items, err := h.dueItems(id, settings, date, 0, false)
		if err != nil {
			h.logger.Error("build calendar view", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load calendar")
			return
		}
		days[date.Format("2006-01-02")] = items
	}
	writeJSON(w, http.StatusOK, days)
}

func (h *TaskHandler) loadSettings(w http.ResponseWriter) *model.FamilySettings {
	settings, err := h.settings.Get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return nil
	}
	if settings == nil {
		// Sensible defaults until an admin configures the family.
		settings = &model.FamilySettings{Timezone: "UTC", WeekStartsOn: time.Monday}
	}
	return settings
}

// dueItems evaluates every active assignment for the user on the given
// date. A zero clock disables the due-time cutoff. The today view keeps
// a task completed on the date itself so it renders checked off; the
// calendar hides a completed window task for its whole window instead.
func (h *TaskHandler) dueItems(id auth.Identity, settings *model.FamilySettings, date time.Time, clock int, includeCompletedToday bool) ([]taskItem, error) {
	assignments, err := h.tasks.ListActiveAssignments()
	if err != nil {
		return nil, err
	}

	weekCompletions, err := h.completions.ListInRange(
		schedule.WeekStart(date, settings.WeekStartsOn),
		schedule.WeekEnd(date, settings.WeekStartsOn),
	)
	if err != nil {
		return nil, err
	}
	monthCompletions, err := h.completions.ListInRange(schedule.MonthStart(date), schedule.MonthEnd(date))
	if err != nil {
		return nil, err
	}

	day := schedule.DayBit(date.Weekday())
	items := []taskItem{}
	for _, a := range assignments {
		if !h.assignedTo(a, id, settings) || !schedule.InRange(a, date) {
			continue
		}
		if !schedule.IsDue(a, date, clock, day, weekCompletions, monthCompletions, includeCompletedToday) {
			continue
		}

		def, err := h.tasks.GetDefinition(a.TaskDefinitionID)
		if err != nil {
			return nil, err
		}
		if def == nil {
			continue
		}

		item := taskItem{
			AssignmentID: a.ID,
			Title:        def.Title,
			Description:  def.Description,
			Points:       def.DefaultPoints,
			DueTime:      a.DueTime,
			ScheduleType: a.ScheduleType,
		}
		for i := range monthCompletions {
			c := &monthCompletions[i]
			if c.AssignmentID == a.ID && c.Date.Equal(date) {
				item.Completion = c
				break
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// assignedTo mirrors Assignee.Matches but lets admins opt into group
// tasks aimed at regular users.
func (h *TaskHandler) assignedTo(a model.TaskAssignment, id auth.Identity, settings *model.FamilySettings) bool {
	if a.Assignee.Matches(id.UserID, id.Role) {
		return true
	}
	return settings.IncludeAdminsInAssignments &&
		id.Role == model.RoleAdmin &&
		a.Assignee.Group != nil && *a.Assignee.Group == model.RoleUser
}

type completeRequest struct {
	Date  *string `json:"date"`
	Notes string  `json:"notes"`
}

// Complete records that the caller performed an assignment, today by
// default. The completion waits in the verification queue until an admin
// confirms it.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	assignmentID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req completeRequest
	// Body is optional for a plain "done today".
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	id, _ := auth.FromContext(r.Context())
	settings := h.loadSettings(w)
	if settings == nil {
		return
	}

	a, err := h.tasks.GetAssignment(assignmentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load assignment")
		return
	}
	if a == nil || !a.Active {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}
	if !h.assignedTo(*a, id, settings) && id.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "not your task")
		return
	}

	date, _ := schedule.LocalToday(h.now(), settings.Location())
	if req.Date != nil {
		date, err = time.ParseInLocation("2006-01-02", *req.Date, time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
	}
	if !schedule.InRange(*a, date) {
		writeError(w, http.StatusBadRequest, "date outside assignment window")
		return
	}

	c, err := h.completions.Create(assignmentID, date, id.UserID, req.Notes)
	if err != nil {
		writeStoreError(w, err, "failed to record completion")
		return
	}
	h.broadcast(websocket.Event{Type: websocket.EventTaskCompleted, UserID: id.UserID, ID: c.ID})
	writeJSON(w, http.StatusCreated, c)
}
