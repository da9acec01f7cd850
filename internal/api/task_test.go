package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"taskmanager/internal/cache"
	"taskmanager/internal/config"
	"taskmanager/internal/middleware"
	"taskmanager/internal/models"
	"taskmanager/internal/repository"
	"taskmanager/internal/websocket"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTask(t *testing.T, env *testEnv, token string, body map[string]interface{}) models.Task {
	t.Helper()
	status, resp := env.do(t, http.MethodPost, "/task/", token, body)
	require.Equal(t, http.StatusCreated, status, string(resp))
	return decode[models.Task](t, resp)
}

func listTasks(t *testing.T, env *testEnv, token string) []models.Task {
	t.Helper()
	status, resp := env.do(t, http.MethodGet, "/task/", token, nil)
	require.Equal(t, http.StatusOK, status, string(resp))
	return decode[[]models.Task](t, resp)
}

func TestCreateTaskRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.signupAndLogin(t, "alice", "a@x.com", "password1")

	due := time.Date(2031, 5, 6, 7, 8, 9, 0, time.UTC)
	created := createTask(t, env, token, map[string]interface{}{
		"title":       "Buy milk",
		"description": "2 litres",
		"hexColor":    "#ffaa00",
		"tag":         "home",
		"dueAt":       due.Format(time.RFC3339),
		"completed":   true,
		"priority":    3,
	})

	assert.Equal(t, models.PriorityHigh, created.Priority)
	assert.Equal(t, userID, created.UserID.String())

	tasks := listTasks(t, env, token)
	require.Len(t, tasks, 1)
	got := tasks[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Buy milk", got.Title)
	assert.Equal(t, "2 litres", got.Description)
	assert.Equal(t, "#ffaa00", got.HexColor)
	assert.Equal(t, "home", got.Tag)
	assert.True(t, got.Completed)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.True(t, due.Equal(got.DueAt))

	// raw wire format keeps the priority as text
	_, raw := env.do(t, http.MethodGet, "/task/", token, nil)
	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &rows))
	assert.Equal(t, "3", rows[0]["priority"])
}

func TestCreateTaskDefaults(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signupAndLogin(t, "alice", "a@x.com", "password1")

	created := createTask(t, env, token, map[string]interface{}{
		"title": "Defaults", "description": "d", "hexColor": "#000000", "tag": "t",
	})

	assert.False(t, created.Completed)
	assert.Equal(t, models.PriorityLow, created.Priority)
	assert.True(t, created.DueAt.Equal(created.CreatedAt), "dueAt defaults to creation time")
	assert.WithinDuration(t, time.Now(), created.DueAt, 5*time.Second)
}

func TestCreateTaskPriorityForms(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signupAndLogin(t, "alice", "a@x.com", "password1")

	for in, want := range map[interface{}]models.Priority{
		2:        models.PriorityMedium,
		"4":      models.PriorityUrgent,
		"urgent": models.PriorityUrgent,
		"low":    models.PriorityLow,
	} {
		created := createTask(t, env, token, map[string]interface{}{"title": "p", "priority": in})
		assert.Equal(t, want, created.Priority, "priority %v", in)
	}

	status, body := env.do(t, http.MethodPost, "/task/", token, map[string]interface{}{"title": "p", "priority": 9})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, errorOf(t, body))
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signupAndLogin(t, "alice", "a@x.com", "password1")

	status, body := env.do(t, http.MethodPost, "/task/", token, map[string]interface{}{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "title is required", errorOf(t, body))

	status, _ = env.do(t, http.MethodPost, "/task/", token, map[string]interface{}{"title": "x", "dueAt": "tomorrow"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestListTasksOnlyOwn(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := env.signupAndLogin(t, "alice", "a@x.com", "password1")
	bob, _ := env.signupAndLogin(t, "bob", "b@x.com", "password1")

	assert.Empty(t, listTasks(t, env, alice))

	createTask(t, env, alice, map[string]interface{}{"title": "a1"})
	createTask(t, env, alice, map[string]interface{}{"title": "a2"})
	createTask(t, env, bob, map[string]interface{}{"title": "b1"})

	aliceTasks := listTasks(t, env, alice)
	require.Len(t, aliceTasks, 2)
	for _, task := range aliceTasks {
		assert.NotEqual(t, "b1", task.Title)
	}
	assert.Len(t, listTasks(t, env, bob), 1)

	// an empty list is [] rather than null
	carol, _ := env.signupAndLogin(t, "carol", "c@x.com", "password1")
	_, raw := env.do(t, http.MethodGet, "/task/", carol, nil)
	assert.Equal(t, "[]", string(raw))
}

func TestUpdateTask(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := env.signupAndLogin(t, "alice", "a@x.com", "password1")
	bob, _ := env.signupAndLogin(t, "bob", "b@x.com", "password1")

	task := createTask(t, env, alice, map[string]interface{}{"title": "orig", "tag": "work", "priority": 1})
	path := "/task/" + task.ID.String()

	t.Run("foreign task is not found", func(t *testing.T) {
		status, body := env.do(t, http.MethodPatch, path, bob, map[string]interface{}{"completed": true})
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "Task not found", errorOf(t, body))
	})

	t.Run("missing task is not found", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPatch, "/task/"+uuid.NewString(), alice, map[string]interface{}{"completed": true})
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("malformed id", func(t *testing.T) {
		status, body := env.do(t, http.MethodPatch, "/task/42", alice, map[string]interface{}{"completed": true})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid task id", errorOf(t, body))
	})

	t.Run("empty patch", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPatch, path, alice, map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("empty title", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPatch, path, alice, map[string]interface{}{"title": ""})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("owner partial update", func(t *testing.T) {
		time.Sleep(2 * time.Millisecond)
		status, body := env.do(t, http.MethodPatch, path, alice, map[string]interface{}{
			"completed": true,
			"priority":  "urgent",
		})
		require.Equal(t, http.StatusOK, status, string(body))

		updated := decode[models.Task](t, body)
		assert.True(t, updated.Completed)
		assert.Equal(t, models.PriorityUrgent, updated.Priority)
		assert.Equal(t, "orig", updated.Title)
		assert.Equal(t, "work", updated.Tag)
		assert.True(t, updated.UpdatedAt.After(task.UpdatedAt))
	})

	// bob's failed attempt left the task alone
	tasks := listTasks(t, env, alice)
	require.Len(t, tasks, 1)
	assert.Equal(t, "orig", tasks[0].Title)
}

func TestDeleteTask(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := env.signupAndLogin(t, "alice", "a@x.com", "password1")
	bob, _ := env.signupAndLogin(t, "bob", "b@x.com", "password1")

	task := createTask(t, env, alice, map[string]interface{}{"title": "mine"})
	path := "/task/" + task.ID.String()

	status, body := env.do(t, http.MethodDelete, path, bob, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Task not found", errorOf(t, body))
	assert.Len(t, listTasks(t, env, alice), 1, "foreign delete must not remove the task")

	status, _ = env.do(t, http.MethodDelete, "/task/not-a-uuid", alice, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodDelete, path, alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "true", string(body))
	assert.Empty(t, listTasks(t, env, alice))

	status, _ = env.do(t, http.MethodDelete, path, alice, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTaskListCacheInvalidation(t *testing.T) {
	deps := newTestDeps(t)
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	deps.Cache = cache.NewRedisTaskCache(client, time.Hour)
	env := newTestEnvWith(t, deps)

	token, userID := env.signupAndLogin(t, "alice", "a@x.com", "password1")
	cacheKey := "tasks:user:" + userID

	assert.Empty(t, listTasks(t, env, token))
	assert.True(t, srv.Exists(cacheKey), "list populates the cache")

	task := createTask(t, env, token, map[string]interface{}{"title": "fresh"})
	assert.False(t, srv.Exists(cacheKey), "create invalidates the cache")

	tasks := listTasks(t, env, token)
	require.Len(t, tasks, 1)
	assert.Equal(t, "fresh", tasks[0].Title)

	status, _ := env.do(t, http.MethodPatch, "/task/"+task.ID.String(), token, map[string]interface{}{"title": "renamed"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "renamed", listTasks(t, env, token)[0].Title)

	status, _ = env.do(t, http.MethodDelete, "/task/"+task.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, listTasks(t, env, token))

	// a dead cache degrades to the database
	srv.Close()
	assert.Empty(t, listTasks(t, env, token))
}

// gatedTasks holds the first ListByUser open after its read until release is
// closed.
type gatedTasks struct {
	config.TaskStore
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (g *gatedTasks) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Task, error) {
	tasks, err := g.TaskStore.ListByUser(ctx, userID)
	g.once.Do(func() {
		close(g.read)
		<-g.release
	})
	return tasks, err
}

func TestTaskListCacheIgnoresListReadBeforeWrite(t *testing.T) {
	deps := newTestDeps(t)
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	deps.Cache = cache.NewRedisTaskCache(client, time.Hour)
	gated := &gatedTasks{TaskStore: deps.Tasks, read: make(chan struct{}), release: make(chan struct{})}
	deps.Tasks = gated
	env := newTestEnvWith(t, deps)

	token, _ := env.signupAndLogin(t, "alice", "a@x.com", "password1")

	slowList := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/task/", nil)
		req.Header.Set(middleware.TokenHeader, token)
		resp, err := env.app.Test(req, -1)
		if err != nil {
			slowList <- 0
			return
		}
		resp.Body.Close()
		slowList <- resp.StatusCode
	}()

	select {
	case <-gated.read:
	case <-time.After(5 * time.Second):
		t.Fatal("list never reached the database")
	}

	createTask(t, env, token, map[string]interface{}{"title": "new"})
	close(gated.release)
	require.Equal(t, http.StatusOK, <-slowList)

	tasks := listTasks(t, env, token)
	require.Len(t, tasks, 1, "the created task must survive a concurrent list")
	assert.Equal(t, "new", tasks[0].Title)
}

type recordingConn struct {
	messages chan []byte
}

func (c *recordingConn) WriteMessage(messageType int, data []byte) error {
	if messageType == fiberws.TextMessage {
		c.messages <- data
	}
	return nil
}

func (c *recordingConn) SetWriteDeadline(time.Time) error { return nil }

func (c *recordingConn) Close() error { return nil }

func TestTaskEventsPublished(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.signupAndLogin(t, "alice", "a@x.com", "password1")

	conn := &recordingConn{messages: make(chan []byte, 8)}
	client := websocket.NewClient(uuid.MustParse(userID))
	require.True(t, env.deps.Hub.Register(client))
	go client.WritePump(conn)

	next := func() websocket.Event {
		select {
		case data := <-conn.messages:
			return decode[websocket.Event](t, data)
		case <-time.After(time.Second):
			t.Fatal("no task event")
			return websocket.Event{}
		}
	}

	task := createTask(t, env, token, map[string]interface{}{"title": "watched"})
	ev := next()
	assert.Equal(t, websocket.EventTaskCreated, ev.Type)
	assert.Equal(t, task.ID, ev.TaskID)

	env.do(t, http.MethodPatch, "/task/"+task.ID.String(), token, map[string]interface{}{"completed": true})
	ev = next()
	assert.Equal(t, websocket.EventTaskUpdated, ev.Type)
	require.NotNil(t, ev.Task)
	assert.True(t, ev.Task.Completed)

	env.do(t, http.MethodDelete, "/task/"+task.ID.String(), token, nil)
	ev = next()
	assert.Equal(t, websocket.EventTaskDeleted, ev.Type)
	assert.Nil(t, ev.Task)
}

func TestTaskEventsRequiresUpgrade(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signupAndLogin(t, "alice", "a@x.com", "password1")

	status, body := env.do(t, http.MethodGet, "/task/ws", token, nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
	assert.NotEmpty(t, errorOf(t, body))
}

type failingTasks struct{}

var errDown = errors.New("connection refused")

func (failingTasks) Create(context.Context, repository.NewTask) (models.Task, error) {
	return models.Task{}, errDown
}

func (failingTasks) ListByUser(context.Context, uuid.UUID) ([]models.Task, error) {
	return nil, errDown
}

func (failingTasks) Update(context.Context, uuid.UUID, uuid.UUID, models.TaskPatch) (models.Task, error) {
	return models.Task{}, errDown
}

func (failingTasks) Delete(context.Context, uuid.UUID, uuid.UUID) error { return errDown }

func TestTaskStoreFailuresAreInternalErrors(t *testing.T) {
	deps := newTestDeps(t)
	deps.Tasks = failingTasks{}
	env := newTestEnvWith(t, deps)
	token, _ := env.signupAndLogin(t, "alice", "a@x.com", "password1")
	path := "/task/" + uuid.NewString()

	calls := []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodPost, "/task/", map[string]interface{}{"title": "x"}},
		{http.MethodGet, "/task/", nil},
		{http.MethodPatch, path, map[string]interface{}{"completed": true}},
		{http.MethodDelete, path, nil},
	}
	for _, c := range calls {
		status, body := env.do(t, c.method, c.path, token, c.body)
		assert.Equal(t, http.StatusInternalServerError, status, c.method)
		assert.Equal(t, "Internal server error", errorOf(t, body))
		assert.NotContains(t, string(body), "connection refused")
	}
}
