package tasktransport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/authsvc"
	"github.com/ichigozero/gtdkit/taskd/authsvc/pkg/authservice"
	"github.com/ichigozero/gtdkit/taskd/authsvc/pkg/authtransport"
	"github.com/ichigozero/gtdkit/taskd/db"
	"github.com/ichigozero/gtdkit/taskd/tasksvc"
	taskgorm "github.com/ichigozero/gtdkit/taskd/tasksvc/db/gorm"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pkg/taskservice"
	"github.com/ichigozero/gtdkit/taskd/usersvc"
	usergorm "github.com/ichigozero/gtdkit/taskd/usersvc/db/gorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	endpoints  taskendpoint.Set
	aliceToken string
	bobToken   string
}

func newBackend(t *testing.T) backend {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(db.Config{SQLitePath: filepath.Join(t.TempDir(), "taskd.db")}, log.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	users := usergorm.NewUserRepository(conn)
	alice, err := users.Create(ctx, usersvc.User{Email: "alice@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	bob, err := users.Create(ctx, usersvc.User{Email: "bob@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	tokenizer, err := authservice.NewTokenizer(authservice.Config{AccessSecret: []byte("test-secret")})
	require.NoError(t, err)
	aliceToken, err := tokenizer.Sign(authsvc.Identity{ID: alice.ID, Email: alice.Email})
	require.NoError(t, err)
	bobToken, err := tokenizer.Sign(authsvc.Identity{ID: bob.ID, Email: bob.Email})
	require.NoError(t, err)

	svc := taskservice.New(taskgorm.NewTaskRepository(conn), log.NewNopLogger())
	return backend{
		endpoints:  taskendpoint.New(svc, authtransport.NewAuthenticator(tokenizer), log.NewNopLogger()),
		aliceToken: aliceToken,
		bobToken:   bobToken,
	}
}

type httpClient struct {
	t   *testing.T
	url string
}

func (c httpClient) do(method, path, token, body string) (int, []byte) {
	c.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, c.url+path, r)
	require.NoError(c.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, b
}

func newHTTPClient(t *testing.T) (httpClient, backend) {
	b := newBackend(t)
	srv := httptest.NewServer(NewHTTPHandler(b.endpoints, log.NewNopLogger()))
	t.Cleanup(srv.Close)
	return httpClient{t: t, url: srv.URL}, b
}

func TestHTTP_TaskLifecycle(t *testing.T) {
	c, b := newHTTPClient(t)

	code, body := c.do("POST", "/tasks", b.aliceToken, `{"title":"Buy milk","dueDate":"2025-12-31"}`)
	require.Equal(t, http.StatusCreated, code, string(body))
	var created tasksvc.CreatedTask
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Buy milk", created.Title)

	code, body = c.do("GET", "/tasks", b.aliceToken, "")
	require.Equal(t, http.StatusOK, code)
	var tasks []tasksvc.Task
	require.NoError(t, json.Unmarshal(body, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, tasksvc.StatusPending, tasks[0].Status)
	assert.Equal(t, tasksvc.PriorityMedium, tasks[0].Priority)
	require.NotNil(t, tasks[0].DueDate)
	assert.Equal(t, "2025-12-31T00:00:00Z", tasks[0].DueDate.UTC().Format("2006-01-02T15:04:05Z07:00"))

	code, body = c.do("PATCH", "/tasks/"+created.ID, b.aliceToken, `{"status":"COMPLETED"}`)
	require.Equal(t, http.StatusOK, code, string(body))
	var updated tasksvc.Task
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, tasksvc.StatusCompleted, updated.Status)
	assert.Equal(t, "Buy milk", updated.Title)

	code, body = c.do("GET", "/tasks?status=COMPLETED", b.aliceToken, "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &tasks))
	assert.Len(t, tasks, 1)

	code, body = c.do("DELETE", "/tasks/"+created.ID, b.aliceToken, "")
	require.Equal(t, http.StatusOK, code)
	var deleted tasksvc.Task
	require.NoError(t, json.Unmarshal(body, &deleted))
	assert.Equal(t, created.ID, deleted.ID)

	code, _ = c.do("GET", "/tasks/"+created.ID, b.aliceToken, "")
	assert.Equal(t, http.StatusForbidden, code)
}

func TestHTTP_CrossUserAccess(t *testing.T) {
	c, b := newHTTPClient(t)

	code, body := c.do("POST", "/tasks", b.aliceToken, `{"title":"Buy milk"}`)
	require.Equal(t, http.StatusCreated, code)
	var created tasksvc.CreatedTask
	require.NoError(t, json.Unmarshal(body, &created))

	_, missing := c.do("GET", "/tasks/no-such-task", b.bobToken, "")
	for _, tt := range []struct{ method, body string }{
		{"GET", ""},
		{"PATCH", `{"title":"mine now"}`},
		{"DELETE", ""},
	} {
		code, body := c.do(tt.method, "/tasks/"+created.ID, b.bobToken, tt.body)
		assert.Equal(t, http.StatusForbidden, code, tt.method)
		assert.JSONEq(t, string(missing), string(body), tt.method)
	}

	code, body = c.do("GET", "/tasks", b.aliceToken, "")
	require.Equal(t, http.StatusOK, code)
	var tasks []tasksvc.Task
	require.NoError(t, json.Unmarshal(body, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)

	code, body = c.do("GET", "/tasks", b.bobToken, "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(body))
}

func TestHTTP_Unauthenticated(t *testing.T) {
	c, _ := newHTTPClient(t)

	for _, token := range []string{"", "not-a-jwt"} {
		code, body := c.do("GET", "/tasks", token, "")
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.JSONEq(t, `{"error":"unauthenticated"}`, string(body))
	}

	other, err := authservice.NewTokenizer(authservice.Config{AccessSecret: []byte("other-secret")})
	require.NoError(t, err)
	forged, err := other.Sign(authsvc.Identity{ID: "someone"})
	require.NoError(t, err)
	code, _ := c.do("POST", "/tasks", forged, `{"title":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestHTTP_InvalidInput(t *testing.T) {
	c, b := newHTTPClient(t)

	tests := []struct {
		name, method, path, body string
	}{
		{"malformed json", "POST", "/tasks", `{"title":`},
		{"empty title", "POST", "/tasks", `{"title":"  "}`},
		{"bad status", "POST", "/tasks", `{"title":"t","status":"DONE"}`},
		{"bad due date", "POST", "/tasks", `{"title":"t","dueDate":"tomorrow"}`},
		{"bad filter", "GET", "/tasks?status=DONE", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := c.do(tt.method, tt.path, b.aliceToken, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.JSONEq(t, `{"error":"invalid argument"}`, string(body))
		})
	}
}

func TestErr2Code(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, err2code(tasksvc.ErrInvalidArgument))
	assert.Equal(t, http.StatusUnauthorized, err2code(authsvc.ErrUnauthenticated))
	assert.Equal(t, http.StatusForbidden, err2code(tasksvc.ErrNotFoundOrForbidden))
	assert.Equal(t, http.StatusInternalServerError, err2code(io.ErrUnexpectedEOF))

	rec := httptest.NewRecorder()
	errorEncoder(context.Background(), io.ErrUnexpectedEOF, rec)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}
