package controller_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taskory/config"
	"taskory/models"
	"taskory/routes"
	"taskory/utils"
)

type testEnv struct {
	App *fiber.App
	DB  *gorm.DB
	Hub *utils.NotificationHub
}

// newTestEnv wires the full application against a throwaway SQLite file.
// The auth middleware resolves sessions through config.DB, so the global
// is pointed at the test database too.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	if err := config.LoadConfig(); err != nil {
		t.Fatalf("load config: %v", err)
	}
	config.AppConfig.UploadDir = t.TempDir()

	db, err := config.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("migrate database: %v", err)
	}
	config.DB = db

	hub := utils.NewNotificationHub()
	notifier := utils.NewNotifier(hub)

	app := fiber.New(fiber.Config{
		BodyLimit: (config.AppConfig.MaxUploadMB + 1) << 20,
	})
	routes.SetupRoutes(app, db, hub, notifier)

	return &testEnv{App: app, DB: db, Hub: hub}
}

func (te *testEnv) request(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := te.App.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (te *testEnv) upload(t *testing.T, path, token, filename string, content []byte) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := te.App.Test(req, -1)
	if err != nil {
		t.Fatalf("upload %s: %v", path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d (body: %s)", resp.StatusCode, want, body)
	}
}

// wantError checks the message in the standard error envelope.
func wantError(t *testing.T, resp *http.Response, want string) {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	decode(t, resp, &out)
	if out.Error != want {
		t.Fatalf("error = %q, want %q", out.Error, want)
	}
}

// register creates an account and returns its token and id. The first
// account in a fresh database becomes the admin.
func (te *testEnv) register(t *testing.T, email, name, role string) (string, uint) {
	t.Helper()

	payload := fiber.Map{
		"email":    email,
		"password": "password123",
		"name":     name,
	}
	if role != "" {
		payload["role"] = role
	}
	resp := te.request(t, http.MethodPost, "/auth/register", "", payload)
	wantStatus(t, resp, http.StatusCreated)

	var out struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decode(t, resp, &out)
	return out.Token, out.User.ID
}

func (te *testEnv) createProject(t *testing.T, token, name, key string) uint {
	t.Helper()

	resp := te.request(t, http.MethodPost, "/api/v1/projects", token, fiber.Map{
		"name": name,
		"key":  key,
	})
	wantStatus(t, resp, http.StatusCreated)

	var out struct {
		Data models.Project `json:"data"`
	}
	decode(t, resp, &out)
	return out.Data.ID
}

func (te *testEnv) createIssue(t *testing.T, token string, projectID uint, payload fiber.Map) models.Issue {
	t.Helper()

	resp := te.request(t, http.MethodPost, projectPath(projectID, "issues"), token, payload)
	wantStatus(t, resp, http.StatusCreated)

	var out struct {
		Data models.Issue `json:"data"`
	}
	decode(t, resp, &out)
	return out.Data
}

func (te *testEnv) createSprint(t *testing.T, token string, projectID uint, payload fiber.Map) models.Sprint {
	t.Helper()

	resp := te.request(t, http.MethodPost, projectPath(projectID, "sprints"), token, payload)
	wantStatus(t, resp, http.StatusCreated)

	var out struct {
		Data models.Sprint `json:"data"`
	}
	decode(t, resp, &out)
	return out.Data
}

func (te *testEnv) notificationCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := te.DB.Model(&models.Notification{}).Count(&count).Error; err != nil {
		t.Fatalf("count notifications: %v", err)
	}
	return count
}

func projectPath(projectID uint, suffix string) string {
	p := "/api/v1/projects/" + itoa(projectID)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func issuePath(issueID uint, suffix string) string {
	p := "/api/v1/issues/" + itoa(issueID)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func sprintPath(sprintID uint, suffix string) string {
	p := "/api/v1/sprints/" + itoa(sprintID)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func aiPath(issueID uint, suffix string) string {
	return "/api/v1/ai/issues/" + itoa(issueID) + "/" + suffix
}

func itoa(id uint) string {
	return fmt.Sprint(id)
}
