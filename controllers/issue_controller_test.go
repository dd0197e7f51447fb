package controller_test

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/gofiber/fiber/v2"

	"taskory/models"
)

func TestCreateIssueDefaults(t *testing.T) {
	te := newTestEnv(t)
	token, adminID := te.register(t, "admin@example.com", "Admin", "")
	projectID := te.createProject(t, token, "Alpha", "ALP")

	issue := te.createIssue(t, token, projectID, fiber.Map{"title": "Fix login"})
	if issue.Status != "To Do" {
		t.Errorf("status = %q, want %q", issue.Status, "To Do")
	}
	if issue.Priority != "Medium" {
		t.Errorf("priority = %q, want %q", issue.Priority, "Medium")
	}
	if issue.CreatorID != adminID {
		t.Errorf("creator_id = %d, want %d", issue.CreatorID, adminID)
	}
	if issue.DoneAt != nil {
		t.Error("done_at set on create")
	}

	// Even creating directly in "Done" leaves DoneAt empty; it marks
	// the transition, not the state
	done := te.createIssue(t, token, projectID, fiber.Map{
		"title":  "Born finished",
		"status": "Done",
	})
	if done.DoneAt != nil {
		t.Error("done_at set when created in Done")
	}
}

func TestCreateIssueStatusValidation(t *testing.T) {
	te := newTestEnv(t)
	token, _ := te.register(t, "admin@example.com", "Admin", "")
	projectID := te.createProject(t, token, "Alpha", "ALP")

	resp := te.request(t, http.MethodPost, projectPath(projectID, "issues"), token, fiber.Map{
		"title":  "Unknown status",
		"status": "Bogus",
	})
	wantStatus(t, resp, http.StatusBadRequest)

	issue := te.createIssue(t, token, projectID, fiber.Map{
		"title":  "Known status",
		"status": "In Progress",
	})
	if issue.Status != "In Progress" {
		t.Fatalf("status = %q, want %q", issue.Status, "In Progress")
	}
}

func TestCreateIssueReferenceChecks(t *testing.T) {
	te := newTestEnv(t)
	token, _ := te.register(t, "admin@example.com", "Admin", "")
	alphaID := te.createProject(t, token, "Alpha", "ALP")
	betaID := te.createProject(t, token, "Beta", "BET")

	foreign := te.createIssue(t, token, betaID, fiber.Map{"title": "Elsewhere"})
	foreignSprint := te.createSprint(t, token, betaID, fiber.Map{"name": "Beta sprint"})

	cases := []struct {
		name    string
		payload fiber.Map
		status  int
	}{
		{"missing title", fiber.Map{}, http.StatusBadRequest},
		{"bad priority", fiber.Map{"title": "X", "priority": "Urgent"}, http.StatusBadRequest},
		{"assignee missing", fiber.Map{"title": "X", "assignee_id": 9999}, http.StatusNotFound},
		{"parent missing", fiber.Map{"title": "X", "parent_id": 9999}, http.StatusNotFound},
		{"parent other project", fiber.Map{"title": "X", "parent_id": foreign.ID}, http.StatusBadRequest},
		{"sprint missing", fiber.Map{"title": "X", "sprint_id": 9999}, http.StatusNotFound},
		{"sprint other project", fiber.Map{"title": "X", "sprint_id": foreignSprint.ID}, http.StatusBadRequest},
		{"bad due date", fiber.Map{"title": "X", "due_date": "soon"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := te.request(t, http.MethodPost, projectPath(alphaID, "issues"), token, tc.payload)
			wantStatus(t, resp, tc.status)
		})
	}
}

func TestCreateIssueLabels(t *testing.T) {
	te := newTestEnv(t)
	token, _ := te.register(t, "admin@example.com", "Admin", "")
	projectID := te.createProject(t, token, "Alpha", "ALP")

	fromArray := te.createIssue(t, token, projectID, fiber.Map{
		"title":  "Array labels",
		"labels": []string{"bug", " ui ", ""},
	})
	if !reflect.DeepEqual(fromArray.Labels, []string{"bug", "ui"}) {
		t.Fatalf("labels = %v, want [bug ui]", fromArray.Labels)
	}

	fromString := te.createIssue(t, token, projectID, fiber.Map{
		"title":  "Comma labels",
		"labels": "bug, ui,,",
	})
	if !reflect.DeepEqual(fromString.Labels, []string{"bug", "ui"}) {
		t.Fatalf("labels = %v, want [bug ui]", fromString.Labels)
	}
}

func TestCreateIssueNotifications(t *testing.T) {
	te := newTestEnv(t)
	adminToken, adminID := te.register(t, "admin@example.com", "Admin", "")
	devToken, devID := te.register(t, "dev@example.com", "Dev", "")
	_, otherID := te.register(t, "other@example.com", "Other", "")

	projectID := te.createProject(t, adminToken, "Alpha", "ALP")

	// Creator dev, assignee other, owner admin: both get notified
	issue := te.createIssue(t, devToken, projectID, fiber.Map{
		"title":       "Fix login",
		"assignee_id": otherID,
	})

	var rows []models.Notification
	te.DB.Where("related_type = ? AND related_id = ?", models.RelatedIssue, issue.ID).
		Order("user_id").Find(&rows)
	if len(rows) != 2 {
		t.Fatalf("notification rows = %d, want 2", len(rows))
	}
	want := `New issue "Fix login" created in project Alpha`
	seen := map[uint]bool{}
	for _, row := range rows {
		if row.Message != want {
			t.Fatalf("message = %q, want %q", row.Message, want)
		}
		if row.Read {
			t.Fatal("notification born read")
		}
		seen[row.UserID] = true
	}
	if !seen[adminID] || !seen[otherID] {
		t.Fatalf("recipients = %v, want owner %d and assignee %d", seen, adminID, otherID)
	}
	if seen[devID] {
		t.Fatal("creator notified about their own issue")
	}

	// Self-assignment: only the owner hears about it
	selfIssue := te.createIssue(t, devToken, projectID, fiber.Map{
		"title":       "Own work",
		"assignee_id": devID,
	})
	rows = nil
	te.DB.Where("related_type = ? AND related_id = ?", models.RelatedIssue, selfIssue.ID).Find(&rows)
	if len(rows) != 1 || rows[0].UserID != adminID {
		t.Fatalf("self-assigned issue rows = %v, want one for owner", rows)
	}
}

func TestUpdateIssueDoneAtFollowsStatus(t *testing.T) {
	te := newTestEnv(t)
	token, _ := te.register(t, "admin@example.com", "Admin", "")
	projectID := te.createProject(t, token, "Alpha", "ALP")
	issue := te.createIssue(t, token, projectID, fiber.Map{"title": "Finish me"})

	resp := te.request(t, http.MethodPut, issuePath(issue.ID, ""), token, fiber.Map{
		"status": "Done",
	})
	wantStatus(t, resp, http.StatusOK)
	var out struct {
		Data models.Issue `json:"data"`
	}
	decode(t, resp, &out)
	if out.Data.DoneAt == nil {
		t.Fatal("done_at not set on entering Done")
	}

	resp = te.request(t, http.MethodPut, issuePath(issue.ID, ""), token, fiber.Map{
		"status": "In Progress",
	})
	wantStatus(t, resp, http.StatusOK)
	decode(t, resp, &out)
	if out.Data.DoneAt != nil {
		t.Fatal("done_at kept after leaving Done")
	}

	// Unknown target status is rejected
	resp = te.request(t, http.MethodPut, issuePath(issue.ID, ""), token, fiber.Map{
		"status": "Archived",
	})
	wantStatus(t, resp, http.StatusBadRequest)
}

func TestUpdateIssueStatusNotification(t *testing.T) {
	te := newTestEnv(t)
	adminToken, adminID := te.register(t, "admin@example.com", "Admin", "")
	devToken, _ := te.register(t, "dev@example.com", "Dev", "")

	projectID := te.createProject(t, adminToken, "Alpha", "ALP")
	issue := te.createIssue(t, devToken, projectID, fiber.Map{"title": "Fix login"})

	before := te.notificationCount(t)
	resp := te.request(t, http.MethodPut, issuePath(issue.ID, ""), devToken, fiber.Map{
		"status": "In Progress",
	})
	wantStatus(t, resp, http.StatusOK)

	var rows []models.Notification
	te.DB.Where("user_id = ? AND message = ?", adminID,
		`Issue "Fix login" status changed to In Progress`).Find(&rows)
	if len(rows) != 1 {
		t.Fatalf("owner status rows = %d, want 1", len(rows))
	}
	if te.notificationCount(t) != before+1 {
		t.Fatalf("notification count grew by %d, want 1", te.notificationCount(t)-before)
	}

	// Saving without a status change stays quiet
	resp = te.request(t, http.MethodPut, issuePath(issue.ID, ""), devToken, fiber.Map{
		"title": "Fix login flow",
	})
	wantStatus(t, resp, http.StatusOK)
	if te.notificationCount(t) != before+1 {
		t.Fatal("title-only update produced notifications")
	}
}

func TestUpdateIssueAssignmentNotification(t *testing.T) {
	te := newTestEnv(t)
	adminToken, _ := te.register(t, "admin@example.com", "Admin", "")
	_, devID := te.register(t, "dev@example.com", "Dev", "")

	projectID := te.createProject(t, adminToken, "Alpha", "ALP")
	issue := te.createIssue(t, adminToken, projectID, fiber.Map{"title": "Handoff"})

	resp := te.request(t, http.MethodPut, issuePath(issue.ID, ""), adminToken, fiber.Map{
		"assignee_id": devID,
	})
	wantStatus(t, resp, http.StatusOK)

	assignedMsg := `You have been assigned to issue "Handoff"`
	var rows []models.Notification
	te.DB.Where("user_id = ? AND message = ?", devID, assignedMsg).Find(&rows)
	if len(rows) != 1 {
		t.Fatalf("assignment rows = %d, want 1", len(rows))
	}

	// Re-sending the same assignee is a no-op
	resp = te.request(t, http.MethodPut, issuePath(issue.ID, ""), adminToken, fiber.Map{
		"assignee_id": devID,
	})
	wantStatus(t, resp, http.StatusOK)
	rows = nil
	te.DB.Where("user_id = ? AND message = ?", devID, assignedMsg).Find(&rows)
	if len(rows) != 1 {
		t.Fatalf("assignment rows after repeat = %d, want 1", len(rows))
	}

	// Clearing the assignee is silent
	before := te.notificationCount(t)
	resp = te.request(t, http.MethodPut, issuePath(issue.ID, ""), adminToken, fiber.Map{
		"assignee_id": 0,
	})
	wantStatus(t, resp, http.StatusOK)
	var cleared struct {
		Data models.Issue `json:"data"`
	}
	decode(t, resp, &cleared)
	if cleared.Data.AssigneeID != nil {
		t.Fatal("assignee_id 0 did not clear the assignee")
	}
	if te.notificationCount(t) != before {
		t.Fatal("clearing the assignee produced notifications")
	}
}

func TestUpdateIssuePermissions(t *testing.T) {
	te := newTestEnv(t)
	adminToken, _ := te.register(t, "admin@example.com", "Admin", "")
	creatorToken, _ := te.register(t, "creator@example.com", "Creator", "")
	assigneeToken, assigneeID := te.register(t, "assignee@example.com", "Assignee", "")
	strangerToken, _ := te.register(t, "stranger@example.com", "Stranger", "")

	projectID := te.createProject(t, adminToken, "Alpha", "ALP")
	issue := te.createIssue(t, creatorToken, projectID, fiber.Map{
		"title":       "Guarded",
		"assignee_id": assigneeID,
	})

	resp := te.request(t, http.MethodPut, issuePath(issue.ID, ""), strangerToken, fiber.Map{
		"title": "Hijack",
	})
	wantStatus(t, resp, http.StatusForbidden)

	for _, token := range []string{creatorToken, assigneeToken, adminToken} {
		resp = te.request(t, http.MethodPut, issuePath(issue.ID, ""), token, fiber.Map{
			"description": "touched",
		})
		wantStatus(t, resp, http.StatusOK)
	}
}

func TestUpdateIssueParentRules(t *testing.T) {
	te := newTestEnv(t)
	token, _ := te.register(t, "admin@example.com", "Admin", "")
	alphaID := te.createProject(t, token, "Alpha", "ALP")
	betaID := te.createProject(t, token, "Beta", "BET")

	issue := te.createIssue(t, token, alphaID, fiber.Map{"title": "Child"})
	parent := te.createIssue(t, token, alphaID, fiber.Map{"title": "Parent"})
	foreign := te.createIssue(t, token, betaID, fiber.Map{"title": "Foreign"})

	resp := te.request(t, http.MethodPut, issuePath(issue.ID, ""), token, fiber.Map{
		"parent_id": issue.ID,
	})
	wantStatus(t, resp, http.StatusBadRequest)

	resp = te.request(t, http.MethodPut, issuePath(issue.ID, ""), token, fiber.Map{
		"parent_id": foreign.ID,
	})
	wantStatus(t, resp, http.StatusBadRequest)

	resp = te.request(t, http.MethodPut, issuePath(issue.ID, ""), token, fiber.Map{
		"parent_id": parent.ID,
	})
	wantStatus(t, resp, http.StatusOK)
	var out struct {
		Data models.Issue `json:"data"`
	}
	decode(t, resp, &out)
	if out.Data.ParentID == nil || *out.Data.ParentID != parent.ID {
		t.Fatalf("parent_id = %v, want %d", out.Data.ParentID, parent.ID)
	}

	resp = te.request(t, http.MethodPut, issuePath(issue.ID, ""), token, fiber.Map{
		"parent_id": 0,
	})
	wantStatus(t, resp, http.StatusOK)
	decode(t, resp, &out)
	if out.Data.ParentID != nil {
		t.Fatal("parent_id 0 did not clear the parent")
	}
}

func TestUpdateIssueClearsDueDate(t *testing.T) {
	te := newTestEnv(t)
	token, _ := te.register(t, "admin@example.com", "Admin", "")
	projectID := te.createProject(t, token, "Alpha", "ALP")
	issue := te.createIssue(t, token, projectID, fiber.Map{
		"title":    "Scheduled",
		"due_date": "2026-09-01",
	})
	if issue.DueDate == nil {
		t.Fatal("due_date not stored on create")
	}

	resp := te.request(t, http.MethodPut, issuePath(issue.ID, ""), token, fiber.Map{
		"due_date": "",
	})
	wantStatus(t, resp, http.StatusOK)
	var out struct {
		Data models.Issue `json:"data"`
	}
	decode(t, resp, &out)
	if out.Data.DueDate != nil {
		t.Fatal("empty due_date did not clear the date")
	}
}

func TestListIssuesFiltersAndPagination(t *testing.T) {
	te := newTestEnv(t)
	token, adminID := te.register(t, "admin@example.com", "Admin", "")
	projectID := te.createProject(t, token, "Alpha", "ALP")

	te.createIssue(t, token, projectID, fiber.Map{"title": "Login broken", "labels": []string{"bug"}})
	te.createIssue(t, token, projectID, fiber.Map{"title": "Login slow", "status": "In Progress"})
	te.createIssue(t, token, projectID, fiber.Map{"title": "Dark mode", "assignee_id": adminID})
	te.createIssue(t, token, projectID, fiber.Map{"title": "Crash on save", "labels": []string{"bug", "data"}})
	te.createIssue(t, token, projectID, fiber.Map{"title": "Onboarding copy"})

	list := func(q string) (items []models.Issue, total int64) {
		t.Helper()
		resp := te.request(t, http.MethodGet, projectPath(projectID, "issues")+q, token, nil)
		wantStatus(t, resp, http.StatusOK)
		var out struct {
			Data  []models.Issue `json:"data"`
			Total int64          `json:"total"`
		}
		decode(t, resp, &out)
		return out.Data, out.Total
	}

	items, total := list("")
	if total != 5 || len(items) != 5 {
		t.Fatalf("unfiltered = %d items, total %d, want 5/5", len(items), total)
	}

	items, total = list("?limit=2&page=2")
	if total != 5 || len(items) != 2 {
		t.Fatalf("page 2 = %d items, total %d, want 2/5", len(items), total)
	}

	items, _ = list("?status=In+Progress")
	if len(items) != 1 || items[0].Title != "Login slow" {
		t.Fatalf("status filter = %v", titles(items))
	}

	items, _ = list("?assignee_id=" + itoa(adminID))
	if len(items) != 1 || items[0].Title != "Dark mode" {
		t.Fatalf("assignee filter = %v", titles(items))
	}

	items, _ = list("?label=bug")
	if len(items) != 2 {
		t.Fatalf("label filter = %v", titles(items))
	}

	items, _ = list("?search=LOGIN")
	if len(items) != 2 {
		t.Fatalf("search filter = %v", titles(items))
	}
}

func titles(issues []models.Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Title
	}
	return out
}

func TestGetIssueIncludesCommentsAndAttachments(t *testing.T) {
	te := newTestEnv(t)
	token, _ := te.register(t, "admin@example.com", "Admin", "")
	projectID := te.createProject(t, token, "Alpha", "ALP")
	issue := te.createIssue(t, token, projectID, fiber.Map{"title": "Discussed"})

	resp := te.request(t, http.MethodPost, issuePath(issue.ID, "comments"), token, fiber.Map{
		"content": "Looks reproducible",
	})
	wantStatus(t, resp, http.StatusCreated)
	wantStatus(t, te.upload(t, issuePath(issue.ID, "attachments"), token, "log.txt", []byte("trace")), http.StatusCreated)

	resp = te.request(t, http.MethodGet, issuePath(issue.ID, ""), token, nil)
	wantStatus(t, resp, http.StatusOK)
	var out struct {
		Data models.Issue `json:"data"`
	}
	decode(t, resp, &out)
	if len(out.Data.Comments) != 1 || len(out.Data.Attachments) != 1 {
		t.Fatalf("comments = %d, attachments = %d, want 1 and 1",
			len(out.Data.Comments), len(out.Data.Attachments))
	}

	resp = te.request(t, http.MethodGet, "/api/v1/issues/9999", token, nil)
	wantStatus(t, resp, http.StatusNotFound)
}

func TestDeleteIssueTakesDirectChildren(t *testing.T) {
	te := newTestEnv(t)
	token, adminID := te.register(t, "admin@example.com", "Admin", "")
	projectID := te.createProject(t, token, "Alpha", "ALP")

	parent := te.createIssue(t, token, projectID, fiber.Map{"title": "Epic"})
	childOne := te.createIssue(t, token, projectID, fiber.Map{"title": "Task A", "parent_id": parent.ID})
	te.createIssue(t, token, projectID, fiber.Map{"title": "Task B", "parent_id": parent.ID})
	grandchild := te.createIssue(t, token, projectID, fiber.Map{"title": "Subtask", "parent_id": childOne.ID})

	wantStatus(t, te.upload(t, issuePath(parent.ID, "attachments"), token, "notes.txt", []byte("notes")), http.StatusCreated)
	resp := te.request(t, http.MethodPost, issuePath(childOne.ID, "comments"), token, fiber.Map{
		"content": "On it",
	})
	wantStatus(t, resp, http.StatusCreated)
	if err := te.DB.Create(&models.Notification{
		UserID:      adminID,
		Message:     "seed",
		RelatedType: models.RelatedIssue,
		RelatedID:   childOne.ID,
	}).Error; err != nil {
		t.Fatalf("seed notification: %v", err)
	}

	resp = te.request(t, http.MethodDelete, issuePath(parent.ID, ""), token, nil)
	wantStatus(t, resp, http.StatusOK)

	var out struct {
		Data struct {
			DeletedIssues        int64 `json:"deleted_issues"`
			DeletedAttachments   int64 `json:"deleted_attachments"`
			DeletedComments      int64 `json:"deleted_comments"`
			DeletedNotifications int64 `json:"deleted_notifications"`
		} `json:"data"`
	}
	decode(t, resp, &out)
	if out.Data.DeletedIssues != 3 {
		t.Errorf("deleted_issues = %d, want 3 (parent and direct children)", out.Data.DeletedIssues)
	}
	if out.Data.DeletedAttachments != 1 || out.Data.DeletedComments != 1 || out.Data.DeletedNotifications != 1 {
		t.Errorf("deleted attachments/comments/notifications = %d/%d/%d, want 1/1/1",
			out.Data.DeletedAttachments, out.Data.DeletedComments, out.Data.DeletedNotifications)
	}

	// The cascade stops at one level; the grandchild survives with a
	// dangling parent reference
	var survivor models.Issue
	if err := te.DB.First(&survivor, grandchild.ID).Error; err != nil {
		t.Fatalf("grandchild deleted: %v", err)
	}
	if survivor.ParentID == nil || *survivor.ParentID != childOne.ID {
		t.Fatalf("grandchild parent_id = %v, want %d", survivor.ParentID, childOne.ID)
	}
}

func TestDeleteIssuePermissions(t *testing.T) {
	te := newTestEnv(t)
	adminToken, _ := te.register(t, "admin@example.com", "Admin", "")
	strangerToken, _ := te.register(t, "stranger@example.com", "Stranger", "")

	projectID := te.createProject(t, adminToken, "Alpha", "ALP")
	issue := te.createIssue(t, adminToken, projectID, fiber.Map{"title": "Guarded"})

	resp := te.request(t, http.MethodDelete, issuePath(issue.ID, ""), strangerToken, nil)
	wantStatus(t, resp, http.StatusForbidden)
}
