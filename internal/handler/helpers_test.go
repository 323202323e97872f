package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/taskdeck/taskdeck-go/internal/model"
	"github.com/taskdeck/taskdeck-go/internal/repository"
	"github.com/taskdeck/taskdeck-go/internal/service"
)

const testSecret = "test-secret"

type fakeUserStore struct {
	nextID  int64
	byEmail map[string]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: make(map[string]*model.User)}
}

func (f *fakeUserStore) Create(_ context.Context, user *model.User) error {
	if _, exists := f.byEmail[user.Email]; exists {
		return repository.ErrDuplicateEmail
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.byEmail[user.Email] = &stored
	return nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	for _, user := range f.byEmail {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type fakeTaskStore struct {
	nextID int64
	clock  time.Time
	tasks  map[int64]*model.Task
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		tasks: make(map[int64]*model.Task),
	}
}

func (f *fakeTaskStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeTaskStore) Create(_ context.Context, task *model.Task) error {
	f.nextID++
	task.ID = f.nextID
	now := f.tick()
	task.CreatedAt = now
	task.UpdatedAt = now
	stored := *task
	f.tasks[task.ID] = &stored
	return nil
}

func (f *fakeTaskStore) GetByID(_ context.Context, userID, taskID int64) (*model.Task, error) {
	task, ok := f.tasks[taskID]
	if !ok || task.UserID != userID {
		return nil, repository.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTaskStore) List(_ context.Context, userID int64, filter model.TaskFilter) ([]model.Task, error) {
	var tasks []model.Task
	for _, task := range f.tasks {
		if task.UserID != userID {
			continue
		}
		if filter.Completed != nil && task.Completed != *filter.Completed {
			continue
		}
		if filter.Priority != nil && task.Priority != *filter.Priority {
			continue
		}
		tasks = append(tasks, *task)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch filter.SortBy {
		case model.SortByPriority:
			if a.Priority.Rank() != b.Priority.Rank() {
				return a.Priority.Rank() < b.Priority.Rank()
			}
		case model.SortByStatus:
			if a.Completed != b.Completed {
				return !a.Completed
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	return tasks, nil
}

func (f *fakeTaskStore) Update(_ context.Context, task *model.Task) error {
	existing, ok := f.tasks[task.ID]
	if !ok || existing.UserID != task.UserID {
		return repository.ErrTaskNotFound
	}
	updated := *task
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = f.tick()
	f.tasks[task.ID] = &updated
	return nil
}

func (f *fakeTaskStore) Delete(_ context.Context, userID, taskID int64) error {
	task, ok := f.tasks[taskID]
	if !ok || task.UserID != userID {
		return repository.ErrTaskNotFound
	}
	delete(f.tasks, taskID)
	return nil
}

// newTestServer builds the full route tree over in-memory stores.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	authService := service.NewAuthService(newFakeUserStore(), testSecret, time.Hour)
	taskService := service.NewTaskService(newFakeTaskStore())

	router := NewRouter(NewAuthHandler(authService), NewTaskHandler(taskService), testSecret)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// doJSON issues a request with an optional JSON body and bearer token,
// decoding the JSON response into out when out is non-nil.
func doJSON(t *testing.T, method, url, token string, body any, out any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response body: %v", err)
		}
	}
	return resp
}

// signupAndLogin registers a user and returns a bearer token for them.
func signupAndLogin(t *testing.T, srv *httptest.Server, name, email string) string {
	t.Helper()

	resp := doJSON(t, http.MethodPost, srv.URL+"/signup", "", model.SignupRequest{
		Name:     name,
		Email:    email,
		Password: "password123",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signup status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var auth model.AuthResponse
	resp = doJSON(t, http.MethodPost, srv.URL+"/login", "", model.LoginRequest{
		Email:    email,
		Password: "password123",
	}, &auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if auth.Token == "" {
		t.Fatal("login returned empty token")
	}
	return auth.Token
}
