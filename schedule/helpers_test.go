package schedule

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"testing"
	"time"
)

var testDay0 = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

const testDay = 24 * time.Hour

func day(n int) *time.Time {
	value := testDay0.Add(time.Duration(n) * testDay)
	return &value
}

// memoryStore is an in-memory task and dependency repository.
type memoryStore struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	deps    map[string]*Dependency
	order   []string
	members map[string]map[string]bool

	saves    []string
	failSave map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		tasks:    make(map[string]*Task),
		deps:     make(map[string]*Dependency),
		members:  make(map[string]map[string]bool),
		failSave: make(map[string]error),
	}
}

func (s *memoryStore) FindTask(_ context.Context, id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return task.Clone(), nil
}

func (s *memoryStore) SaveTask(_ context.Context, task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failSave[task.ID]; err != nil {
		return err
	}
	s.tasks[task.ID] = task.Clone()
	s.saves = append(s.saves, task.ID)
	return nil
}

func (s *memoryStore) FindDependency(_ context.Context, id string) (*Dependency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dep, ok := s.deps[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *dep
	return &copied, nil
}

func (s *memoryStore) activeWhere(match func(*Dependency) bool) []Dependency {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Dependency
	for _, id := range s.order {
		dep := s.deps[id]
		if dep.IsActive() && match(dep) {
			result = append(result, *dep)
		}
	}
	return result
}

func (s *memoryStore) FindActiveByTask(_ context.Context, taskID string) ([]Dependency, error) {
	return s.activeWhere(func(dep *Dependency) bool { return dep.TaskID == taskID }), nil
}

func (s *memoryStore) FindActiveByDependsOn(_ context.Context, taskID string) ([]Dependency, error) {
	return s.activeWhere(func(dep *Dependency) bool { return dep.DependsOnID == taskID }), nil
}

func (s *memoryStore) FindActivePair(_ context.Context, taskID, dependsOnID string) (*Dependency, error) {
	matches := s.activeWhere(func(dep *Dependency) bool {
		return dep.TaskID == taskID && dep.DependsOnID == dependsOnID
	})
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return &matches[0], nil
}

func (s *memoryStore) CreateDependency(_ context.Context, dep *Dependency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *dep
	s.deps[dep.ID] = &copied
	s.order = append(s.order, dep.ID)
	return nil
}

func (s *memoryStore) SoftDeleteDependency(_ context.Context, id, actor string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dep, ok := s.deps[id]
	if !ok {
		return ErrNotFound
	}
	dep.DeletedAt = &at
	dep.DeletedBy = actor
	return nil
}

func (s *memoryStore) IsMember(_ context.Context, workspace, user string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[workspace][user], nil
}

func (s *memoryStore) addMember(workspace, user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[workspace] == nil {
		s.members[workspace] = make(map[string]bool)
	}
	s.members[workspace][user] = true
}

func (s *memoryStore) addTask(task Task) *Task {
	if task.Workspace == "" {
		task.Workspace = "ws"
	}
	if task.Project == "" {
		task.Project = "proj"
	}
	if task.Status == "" {
		task.Status = StatusTodo
	}
	if task.Title == "" {
		task.Title = "Task " + task.ID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task.Clone()
	return &task
}

// addEdge stores an edge directly, bypassing validation.
func (s *memoryStore) addEdge(id, taskID, dependsOnID string, depType DependencyType) {
	_ = s.CreateDependency(context.Background(), &Dependency{
		ID:          id,
		TaskID:      taskID,
		DependsOnID: dependsOnID,
		Type:        depType,
		CreatedAt:   testDay0,
	})
}

func (s *memoryStore) task(t *testing.T, id string) *Task {
	t.Helper()
	task, err := s.FindTask(context.Background(), id)
	if err != nil {
		t.Fatalf("find task %s: %v", id, err)
	}
	return task
}

func (s *memoryStore) activeCount() int {
	return len(s.activeWhere(func(*Dependency) bool { return true }))
}

func (s *memoryStore) saveCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, saved := range s.saves {
		if saved == id {
			count++
		}
	}
	return count
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Emit(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.events))
	for _, event := range s.events {
		names = append(names, event.Name+":"+event.TaskID)
	}
	return names
}

type recordingActivity struct {
	mu      sync.Mutex
	records []Activity
	err     error
}

func (a *recordingActivity) Record(_ context.Context, activity Activity) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.records = append(a.records, activity)
	return nil
}

type testEnv struct {
	store    *memoryStore
	events   *recordingSink
	activity *recordingActivity
	logs     *bytes.Buffer
	service  *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    newMemoryStore(),
		events:   &recordingSink{},
		activity: &recordingActivity{},
		logs:     &bytes.Buffer{},
	}
	env.store.addMember("ws", "alice")
	env.service = New(Options{
		Tasks:        env.store,
		Dependencies: env.store,
		Members:      env.store,
		Events:       env.events,
		Activity:     env.activity,
		Logger:       log.New(env.logs, "", 0),
		Now:          func() time.Time { return testDay0 },
	})
	return env
}

func sortedIDs(tasks []Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	sort.Strings(ids)
	return ids
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if got := KindOf(err); !errors.Is(got, kind) {
		t.Fatalf("expected kind %v, got %v (%v)", kind, got, err)
	}
}

func assertTime(t *testing.T, label string, got, want *time.Time) {
	t.Helper()
	if got == nil || want == nil {
		if got != want {
			t.Fatalf("%s: expected %v, got %v", label, want, got)
		}
		return
	}
	if !got.Equal(*want) {
		t.Fatalf("%s: expected %s, got %s", label, want.Format(time.RFC3339), got.Format(time.RFC3339))
	}
}
