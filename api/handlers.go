package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/amonks/taskgraph/gantt"
	"github.com/amonks/taskgraph/internal/app"
	"github.com/amonks/taskgraph/internal/validation"
	"github.com/amonks/taskgraph/schedule"
	"github.com/amonks/taskgraph/store"
	"github.com/gin-gonic/gin"
)

// resolveTask loads the live task named by the :id parameter, which may be
// a unique prefix.
func (s *Server) resolveTask(c *gin.Context) (*schedule.Task, bool) {
	task, err := s.app.ResolveTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return task, true
}

func (s *Server) handleListTasks(c *gin.Context) {
	filter := store.TaskFilter{
		Workspace: c.Query("workspace"),
		Project:   c.Query("project"),
	}
	for _, value := range c.QueryArray("status") {
		status, err := schedule.ParseStatus(value)
		if err != nil {
			s.fail(c, err)
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	tasks, err := s.app.Backend.ListTasks(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Workspace   string `json:"workspace"`
	Project     string `json:"project"`
	Status      string `json:"status"`
	StartDate   string `json:"start_date"`
	DueDate     string `json:"due_date"`
	Milestone   bool   `json:"milestone"`
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badBody(err))
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		s.fail(c, err)
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		s.fail(c, err)
		return
	}
	task, err := s.app.CreateTask(c.Request.Context(), store.CreateTaskOptions{
		Title:       req.Title,
		Description: req.Description,
		Workspace:   req.Workspace,
		Project:     req.Project,
		Status:      schedule.Status(req.Status),
		StartDate:   start,
		DueDate:     due,
		IsMilestone: req.Milestone,
	}, actor(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, ok := s.resolveTask(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	task, ok := s.resolveTask(c)
	if !ok {
		return
	}
	if err := s.app.DeleteTask(c.Request.Context(), task.ID, actor(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListDependencies(c *gin.Context) {
	task, ok := s.resolveTask(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	predecessors, err := s.app.Service.Graph.BlockingTasks(ctx, task.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	dependents, err := s.app.Service.Graph.Dependents(ctx, task.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dependencies": predecessors, "dependents": dependents})
}

type createDependencyRequest struct {
	DependsOn string `json:"depends_on"`
	Type      string `json:"type"`
}

func (s *Server) handleCreateDependency(c *gin.Context) {
	task, ok := s.resolveTask(c)
	if !ok {
		return
	}
	var req createDependencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badBody(err))
		return
	}
	depType := schedule.FinishToStart
	if strings.TrimSpace(req.Type) != "" {
		parsed, err := schedule.ParseDependencyType(req.Type)
		if err != nil {
			s.fail(c, err)
			return
		}
		depType = parsed
	}
	ctx := c.Request.Context()
	dependsOn, err := s.app.Backend.ResolveTaskID(ctx, req.DependsOn)
	if err != nil {
		s.fail(c, err)
		return
	}
	dep, err := s.app.Service.Graph.CreateDependency(ctx, task.ID, dependsOn, depType, actor(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dep)
}

func (s *Server) handleDeleteDependency(c *gin.Context) {
	if err := s.app.Service.Graph.DeleteDependency(c.Request.Context(), c.Param("id"), actor(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleTransition(c *gin.Context) {
	task, ok := s.resolveTask(c)
	if !ok {
		return
	}
	status, err := schedule.ParseStatus(c.Query("status"))
	if err != nil {
		s.fail(c, err)
		return
	}
	result, err := s.app.Service.Status.CanTransitionToStatus(c.Request.Context(), task.ID, status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Force  bool   `json:"force"`
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	task, ok := s.resolveTask(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badBody(err))
		return
	}
	change, err := s.app.ChangeStatus(c.Request.Context(), task.ID, schedule.Status(req.Status), req.Force, actor(c))
	if errors.Is(err, app.ErrTransitionBlocked) {
		s.logger.Printf("request %s %s blocked: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "transition": change.Transition})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, change)
}

// updateDatesRequest carries the new range. Omitted or empty dates clear
// the field.
type updateDatesRequest struct {
	StartDate string `json:"start_date"`
	DueDate   string `json:"due_date"`
	Milestone *bool  `json:"milestone"`
}

func (s *Server) handleUpdateDates(c *gin.Context) {
	task, ok := s.resolveTask(c)
	if !ok {
		return
	}
	var req updateDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badBody(err))
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		s.fail(c, err)
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		s.fail(c, err)
		return
	}
	result, err := s.app.Service.Scheduler.SetTaskDates(c.Request.Context(), task.ID, schedule.DateChange{
		StartDate: start,
		DueDate:   due,
		Milestone: req.Milestone,
	}, actor(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleTimeline(c *gin.Context) {
	task, ok := s.resolveTask(c)
	if !ok {
		return
	}
	result, err := s.app.Service.Timeline.ValidateTimeline(c.Request.Context(), task.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGantt(c *gin.Context) {
	chart, err := gantt.Build(c.Request.Context(), s.app.Backend, c.Param("workspace"), c.Param("project"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if c.Query("format") == "text" {
		c.String(http.StatusOK, gantt.Render(chart, gantt.RenderOptions{}))
		return
	}
	c.JSON(http.StatusOK, chart)
}

func (s *Server) handleActivity(c *gin.Context) {
	records, err := s.app.WorkspaceActivity(c.Request.Context(), c.Param("workspace"), actor(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": records})
}

func parseDate(value string) (*time.Time, error) {
	parsed, err := validation.ParseDate(value)
	if err != nil {
		return nil, schedule.NewError(schedule.ErrInvalidArgument, err.Error())
	}
	return parsed, nil
}
