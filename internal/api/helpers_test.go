package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskmanager/configs"
	"taskmanager/internal/api"
	"taskmanager/internal/api/handlers"
	"taskmanager/internal/cache"
	"taskmanager/internal/config"
	"taskmanager/internal/middleware"
	"taskmanager/internal/repository"
	"taskmanager/internal/testutil"
	"taskmanager/internal/websocket"
	"taskmanager/pkg/auth"
	"taskmanager/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

type testEnv struct {
	app  *fiber.App
	deps *config.Dependencies
}

func newTestDeps(t *testing.T) *config.Dependencies {
	db := testutil.OpenSQLite(t)

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	return &config.Dependencies{
		Users:     repository.NewUserRepository(db, time.Second),
		Tasks:     repository.NewTaskRepository(db, time.Second),
		DB:        db,
		Cache:     cache.Nop{},
		Hub:       hub,
		Passwords: auth.NewPasswordHasher(bcrypt.MinCost),
		Tokens:    auth.NewTokenManager(testSecret, time.Hour),
		Validate:  handlers.NewValidator(),
		Log:       logger.NewNop(),
	}
}

func newTestEnvWith(t *testing.T, deps *config.Dependencies) *testEnv {
	cfg := configs.Config{CORSAllowOrigins: "*"}
	return &testEnv{app: api.NewApp(cfg, deps), deps: deps}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, newTestDeps(t))
}

// do sends a request and returns the status and raw body.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(middleware.TokenHeader, token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func errorOf(t *testing.T, data []byte) string {
	t.Helper()
	return decode[map[string]interface{}](t, data)["error"].(string)
}

// signupAndLogin registers a user and returns its token and id.
func (e *testEnv) signupAndLogin(t *testing.T, name, email, password string) (string, string) {
	t.Helper()

	status, _ := e.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, status)

	status, body := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, status)

	res := decode[map[string]interface{}](t, body)
	return res["token"].(string), res["id"].(string)
}
