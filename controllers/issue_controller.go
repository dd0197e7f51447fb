package controller

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taskory/models"
	"taskory/utils"
)

type IssueController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Notifier *utils.Notifier
}

func NewIssueController(db *gorm.DB, logger *log.Logger, notifier *utils.Notifier) *IssueController {
	return &IssueController{
		DB:       db,
		Logger:   logger,
		Notifier: notifier,
	}
}

// CreateIssue creates an issue inside a project. Status defaults to the
// first workflow status when omitted; a given status must belong to the
// workflow.
func (ic *IssueController) CreateIssue(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	var project models.Project
	if err := ic.DB.First(&project, projectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	if !utils.Can(user, utils.ActIssueCreate, utils.Resource{}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Viewers cannot create issues", nil)
	}

	var input struct {
		Title       string      `json:"title" validate:"required,min=1,max=300"`
		Description string      `json:"description"`
		Priority    string      `json:"priority" validate:"omitempty,oneof=Critical High Medium Low"`
		Status      string      `json:"status"`
		Labels      interface{} `json:"labels"`
		AssigneeID  *uint       `json:"assignee_id"`
		ParentID    *uint       `json:"parent_id"`
		SprintID    *uint       `json:"sprint_id"`
		DueDate     string      `json:"due_date"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	workflow, err := ensureWorkflow(ic.DB, project.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load workflow", err)
	}

	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = workflow.Statuses[0]
	} else if !workflow.HasStatus(status) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Status is not part of the project workflow", nil)
	}

	if input.AssigneeID != nil {
		var assignee models.User
		if err := ic.DB.First(&assignee, *input.AssigneeID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Assignee not found", nil)
		}
	}
	if input.ParentID != nil {
		var parent models.Issue
		if err := ic.DB.First(&parent, *input.ParentID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Parent issue not found", nil)
		}
		if parent.ProjectID != project.ID {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Parent issue must belong to the same project", nil)
		}
	}
	if input.SprintID != nil {
		var sprint models.Sprint
		if err := ic.DB.First(&sprint, *input.SprintID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sprint not found", nil)
		}
		if sprint.ProjectID != project.ID {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Sprint belongs to a different project", nil)
		}
	}

	dueDate, err := utils.ParseDate(input.DueDate)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid due_date", err)
	}

	priority := input.Priority
	if priority == "" {
		priority = "Medium"
	}

	issue := models.Issue{
		ProjectID:   project.ID,
		Title:       input.Title,
		Description: input.Description,
		Priority:    priority,
		Status:      status,
		Labels:      utils.NormalizeLabels(input.Labels),
		AssigneeID:  input.AssigneeID,
		ParentID:    input.ParentID,
		SprintID:    input.SprintID,
		CreatorID:   user.ID,
		DueDate:     dueDate,
	}

	tx := ic.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(&issue).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create issue", err)
	}

	recipients := make([]uint, 0, 2)
	if issue.AssigneeID != nil && *issue.AssigneeID != user.ID {
		recipients = append(recipients, *issue.AssigneeID)
	}
	if project.OwnerID != user.ID {
		recipients = append(recipients, project.OwnerID)
	}
	message := fmt.Sprintf("New issue \"%s\" created in project %s", issue.Title, project.Name)
	pending, err := ic.Notifier.Send(tx, recipients, message, models.RelatedIssue, issue.ID)
	if err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create issue", err)
	}

	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create issue", err)
	}
	ic.Notifier.Publish(ic.DB, pending)

	utils.LogEvent("issue_created", map[string]interface{}{
		"issue_id":   issue.ID,
		"project_id": project.ID,
		"creator_id": user.ID,
	})

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(issue))
}

// GetIssues returns a paginated list of a project's issues with filters
func (ic *IssueController) GetIssues(c *fiber.Ctx) error {
	projectID := utils.ParseUint(c.Params("id"))

	var project models.Project
	if err := ic.DB.First(&project, projectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	// Pagination
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := ic.DB.Where("project_id = ?", project.ID)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		query = query.Where("assignee_id = ?", utils.ParseUint(assignee))
	}
	if sprint := c.Query("sprint_id"); sprint != "" {
		query = query.Where("sprint_id = ?", utils.ParseUint(sprint))
	}
	if label := c.Query("label"); label != "" {
		// labels are stored as a JSON array of strings
		query = query.Where("labels LIKE ?", "%\""+label+"\"%")
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var issues []models.Issue
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&issues).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch issues", err)
	}

	var total int64
	query.Model(&models.Issue{}).Count(&total)

	return c.JSON(utils.PaginatedResponse{
		Data:  issues,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetIssue returns a single issue with its comments and attachments
func (ic *IssueController) GetIssue(c *fiber.Ctx) error {
	issueID := utils.ParseUint(c.Params("id"))

	var issue models.Issue
	if err := ic.DB.Preload("Comments").Preload("Attachments").First(&issue, issueID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Issue not found", nil)
	}

	return c.JSON(utils.SuccessResponse(issue))
}
