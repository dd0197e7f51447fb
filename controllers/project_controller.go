package controller

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taskory/config"
	"taskory/models"
	"taskory/utils"
)

type ProjectController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Notifier *utils.Notifier
}

func NewProjectController(db *gorm.DB, logger *log.Logger, notifier *utils.Notifier) *ProjectController {
	return &ProjectController{
		DB:       db,
		Logger:   logger,
		Notifier: notifier,
	}
}

// CreateProject creates a project with its default workflow. The creator
// becomes the owner.
func (pc *ProjectController) CreateProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	if !utils.Can(user, utils.ActProjectCreate, utils.Resource{}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Only admins and project managers can create projects", nil)
	}

	var input struct {
		Name        string `json:"name" validate:"required,min=1,max=200"`
		Key         string `json:"key" validate:"required,projectkey"`
		Description string `json:"description" validate:"omitempty,max=2000"`
		LeadID      *uint  `json:"lead_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	// Keys are stored uppercase
	input.Key = strings.ToUpper(strings.TrimSpace(input.Key))

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if input.LeadID != nil {
		var lead models.User
		if err := pc.DB.First(&lead, *input.LeadID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead user not found", nil)
		}
	}

	// Check key uniqueness
	var existing models.Project
	if err := pc.DB.Where("key = ?", input.Key).First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Project key already in use", nil)
	}

	project := models.Project{
		Name:        input.Name,
		Key:         input.Key,
		Description: input.Description,
		OwnerID:     user.ID,
		LeadID:      input.LeadID,
	}

	// Project and its workflow appear together
	tx := pc.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(&project).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create project", err)
	}
	if _, err := ensureWorkflow(tx, project.ID); err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create workflow", err)
	}
	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create project", err)
	}

	utils.LogEvent("project_created", map[string]interface{}{
		"project_id": project.ID,
		"key":        project.Key,
		"owner_id":   user.ID,
	})

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(project))
}

// GetProjects lists every project, newest first.
func (pc *ProjectController) GetProjects(c *fiber.Ctx) error {
	var projects []models.Project
	if err := pc.DB.Order("created_at DESC").Find(&projects).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list projects", err)
	}
	return c.JSON(utils.SuccessResponse(projects))
}

// GetProject returns one project with its issue and sprint counts.
func (pc *ProjectController) GetProject(c *fiber.Ctx) error {
	projectID := utils.ParseUint(c.Params("id"))

	var project models.Project
	if err := pc.DB.First(&project, projectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	var issueCount, sprintCount int64
	pc.DB.Model(&models.Issue{}).Where("project_id = ?", project.ID).Count(&issueCount)
	pc.DB.Model(&models.Sprint{}).Where("project_id = ?", project.ID).Count(&sprintCount)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"project":      project,
		"issue_count":  issueCount,
		"sprint_count": sprintCount,
	}))
}

// UpdateProject edits name, description and lead.
func (pc *ProjectController) UpdateProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	var project models.Project
	if err := pc.DB.First(&project, projectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	if !utils.Can(user, utils.ActProjectUpdate, utils.Resource{ProjectOwnerID: project.OwnerID}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Not allowed to edit this project", nil)
	}

	var input struct {
		Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
		Description *string `json:"description" validate:"omitempty,max=2000"`
		LeadID      *uint   `json:"lead_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if input.Name != nil {
		project.Name = *input.Name
	}
	if input.Description != nil {
		project.Description = *input.Description
	}
	if input.LeadID != nil {
		var lead models.User
		if err := pc.DB.First(&lead, *input.LeadID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead user not found", nil)
		}
		project.LeadID = input.LeadID
	}

	if err := pc.DB.Save(&project).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update project", err)
	}

	return c.JSON(utils.SuccessResponse(project))
}

// GetBoard groups the project's issues by status in workflow order.
// An optional sprint_id query restricts the board to one sprint.
func (pc *ProjectController) GetBoard(c *fiber.Ctx) error {
	projectID := utils.ParseUint(c.Params("id"))

	var project models.Project
	if err := pc.DB.First(&project, projectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	workflow, err := ensureWorkflow(pc.DB, project.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load workflow", err)
	}

	query := pc.DB.Where("project_id = ?", project.ID)
	if sprintID := c.Query("sprint_id"); sprintID != "" {
		query = query.Where("sprint_id = ?", utils.ParseUint(sprintID))
	}

	var issues []models.Issue
	if err := query.Order("created_at").Find(&issues).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load issues", err)
	}

	columns := make([]fiber.Map, 0, len(workflow.Statuses))
	for _, status := range workflow.Statuses {
		group := make([]models.Issue, 0)
		for _, issue := range issues {
			if issue.Status == status {
				group = append(group, issue)
			}
		}
		columns = append(columns, fiber.Map{
			"status": status,
			"issues": group,
		})
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"project_id": project.ID,
		"columns":    columns,
	}))
}

// GetBacklog lists the project's issues with no sprint, newest first.
func (pc *ProjectController) GetBacklog(c *fiber.Ctx) error {
	projectID := utils.ParseUint(c.Params("id"))

	var project models.Project
	if err := pc.DB.First(&project, projectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	var issues []models.Issue
	if err := pc.DB.Where("project_id = ? AND sprint_id IS NULL", project.ID).
		Order("created_at DESC").Find(&issues).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load backlog", err)
	}

	return c.JSON(utils.SuccessResponse(issues))
}

// DeleteProject removes the project and everything hanging off it in one
// transaction: issues, sprints, the workflow, comments, attachments and
// the notifications linked to any of them. Attachment files are removed
// from disk best-effort after commit. Admin only.
func (pc *ProjectController) DeleteProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	if !utils.Can(user, utils.ActProjectDelete, utils.Resource{}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Only admins can delete projects", nil)
	}

	projectID := utils.ParseUint(c.Params("id"))
	var project models.Project
	if err := pc.DB.First(&project, projectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	// Gather dependents and stakeholders before anything is removed
	var issues []models.Issue
	if err := pc.DB.Where("project_id = ?", project.ID).Find(&issues).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load project issues", err)
	}

	issueIDs := make([]uint, 0, len(issues))
	stakeholders := []uint{project.OwnerID}
	if project.LeadID != nil {
		stakeholders = append(stakeholders, *project.LeadID)
	}
	for _, issue := range issues {
		issueIDs = append(issueIDs, issue.ID)
		stakeholders = append(stakeholders, issue.CreatorID)
		if issue.AssigneeID != nil {
			stakeholders = append(stakeholders, *issue.AssigneeID)
		}
	}

	var sprintIDs []uint
	pc.DB.Model(&models.Sprint{}).Where("project_id = ?", project.ID).Pluck("id", &sprintIDs)

	var attachments []models.Attachment
	if len(issueIDs) > 0 {
		pc.DB.Where("issue_id IN ?", issueIDs).Find(&attachments)
	}

	// Start transaction
	tx := pc.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var deletedAttachments, deletedComments, deletedNotifications int64
	if len(issueIDs) > 0 {
		res := tx.Unscoped().Where("issue_id IN ?", issueIDs).Delete(&models.Attachment{})
		if res.Error != nil {
			tx.Rollback()
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete attachments", res.Error)
		}
		deletedAttachments = res.RowsAffected

		res = tx.Unscoped().Where("issue_id IN ?", issueIDs).Delete(&models.Comment{})
		if res.Error != nil {
			tx.Rollback()
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete comments", res.Error)
		}
		deletedComments = res.RowsAffected

		res = tx.Unscoped().Where("related_type = ? AND related_id IN ?", models.RelatedIssue, issueIDs).Delete(&models.Notification{})
		if res.Error != nil {
			tx.Rollback()
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete notifications", res.Error)
		}
		deletedNotifications += res.RowsAffected
	}
	if len(sprintIDs) > 0 {
		res := tx.Unscoped().Where("related_type = ? AND related_id IN ?", models.RelatedSprint, sprintIDs).Delete(&models.Notification{})
		if res.Error != nil {
			tx.Rollback()
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete notifications", res.Error)
		}
		deletedNotifications += res.RowsAffected
	}
	res := tx.Unscoped().Where("related_type = ? AND related_id = ?", models.RelatedProject, project.ID).Delete(&models.Notification{})
	if res.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete notifications", res.Error)
	}
	deletedNotifications += res.RowsAffected

	res = tx.Unscoped().Where("project_id = ?", project.ID).Delete(&models.Issue{})
	if res.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete issues", res.Error)
	}
	deletedIssues := res.RowsAffected

	res = tx.Unscoped().Where("project_id = ?", project.ID).Delete(&models.Sprint{})
	if res.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete sprints", res.Error)
	}
	deletedSprints := res.RowsAffected

	res = tx.Unscoped().Where("project_id = ?", project.ID).Delete(&models.Workflow{})
	if res.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete workflow", res.Error)
	}
	deletedWorkflows := res.RowsAffected

	if err := tx.Unscoped().Delete(&project).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete project", err)
	}

	// Tell everyone who had work in the project, except the actor
	recipients := make([]uint, 0, len(stakeholders))
	for _, id := range stakeholders {
		if id != user.ID {
			recipients = append(recipients, id)
		}
	}
	message := fmt.Sprintf("Project %s was deleted along with %d issues and %d sprints",
		project.Name, deletedIssues, deletedSprints)
	pending, err := pc.Notifier.Send(tx, recipients, message, models.RelatedProject, project.ID)
	if err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to notify stakeholders", err)
	}

	if err := tx.Commit().Error; err != nil {
		pc.Logger.Printf("Transaction commit failed: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to complete deletion", err)
	}
	pc.Notifier.Publish(pc.DB, pending)

	// Disk cleanup is best-effort; a missing file never fails the delete
	for _, attachment := range attachments {
		path := filepath.Join(config.AppConfig.UploadDir, attachment.StoredName)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			utils.LogError("attachment_file_delete", err, map[string]interface{}{
				"attachment_id": attachment.ID,
				"path":          path,
			})
		}
	}

	utils.LogEvent("project_deleted", map[string]interface{}{
		"project_id":      project.ID,
		"deleted_issues":  deletedIssues,
		"deleted_sprints": deletedSprints,
	})

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"deleted_issues":        deletedIssues,
		"deleted_sprints":       deletedSprints,
		"deleted_workflows":     deletedWorkflows,
		"deleted_attachments":   deletedAttachments,
		"deleted_comments":      deletedComments,
		"deleted_notifications": deletedNotifications,
	}))
}
