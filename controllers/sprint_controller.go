package controller

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taskory/models"
	"taskory/utils"
)

type SprintController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Notifier *utils.Notifier
}

func NewSprintController(db *gorm.DB, logger *log.Logger, notifier *utils.Notifier) *SprintController {
	return &SprintController{
		DB:       db,
		Logger:   logger,
		Notifier: notifier,
	}
}

// CreateSprint creates a sprint in planning state
func (sc *SprintController) CreateSprint(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	var project models.Project
	if err := sc.DB.First(&project, projectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	if !utils.Can(user, utils.ActSprintManage, utils.Resource{
		ProjectOwnerID: project.OwnerID,
		ProjectLeadID:  project.LeadID,
	}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Not allowed to manage sprints in this project", nil)
	}

	var input struct {
		Name      string `json:"name" validate:"required,min=1,max=200"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	start, err := utils.ParseDate(input.StartDate)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid start_date", err)
	}
	end, err := utils.ParseDate(input.EndDate)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid end_date", err)
	}
	if start != nil && end != nil && !start.Before(*end) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Sprint start date must be before its end date", nil)
	}

	sprint := models.Sprint{
		ProjectID: project.ID,
		Name:      input.Name,
		Status:    models.SprintPlanning,
		StartDate: start,
		EndDate:   end,
	}
	if err := sc.DB.Create(&sprint).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create sprint", err)
	}

	utils.LogEvent("sprint_created", map[string]interface{}{
		"sprint_id":  sprint.ID,
		"project_id": project.ID,
	})

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(sprint))
}

// GetProjectSprints lists a project's sprints oldest first
func (sc *SprintController) GetProjectSprints(c *fiber.Ctx) error {
	projectID := utils.ParseUint(c.Params("id"))

	var project models.Project
	if err := sc.DB.First(&project, projectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	var sprints []models.Sprint
	if err := sc.DB.Where("project_id = ?", project.ID).Order("created_at").Find(&sprints).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list sprints", err)
	}
	return c.JSON(utils.SuccessResponse(sprints))
}

// GetSprint returns a single sprint
func (sc *SprintController) GetSprint(c *fiber.Ctx) error {
	sprintID := utils.ParseUint(c.Params("id"))

	var sprint models.Sprint
	if err := sc.DB.First(&sprint, sprintID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sprint not found", nil)
	}
	return c.JSON(utils.SuccessResponse(sprint))
}

// GetSprintIssues lists the issues attached to a sprint
func (sc *SprintController) GetSprintIssues(c *fiber.Ctx) error {
	sprintID := utils.ParseUint(c.Params("id"))

	var sprint models.Sprint
	if err := sc.DB.First(&sprint, sprintID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sprint not found", nil)
	}

	var issues []models.Issue
	if err := sc.DB.Where("sprint_id = ?", sprint.ID).Order("created_at").Find(&issues).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list sprint issues", err)
	}
	return c.JSON(utils.SuccessResponse(issues))
}

// StartSprint moves a planning sprint to active. The state machine is
// monotonic: planning, active, closed, never backwards.
func (sc *SprintController) StartSprint(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	sprintID := utils.ParseUint(c.Params("id"))

	var sprint models.Sprint
	if err := sc.DB.First(&sprint, sprintID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sprint not found", nil)
	}
	var project models.Project
	if err := sc.DB.First(&project, sprint.ProjectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load project", err)
	}

	if !utils.Can(user, utils.ActSprintManage, utils.Resource{
		ProjectOwnerID: project.OwnerID,
		ProjectLeadID:  project.LeadID,
	}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Not allowed to manage sprints in this project", nil)
	}

	switch sprint.Status {
	case models.SprintActive:
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Sprint is already active", nil)
	case models.SprintClosed:
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Cannot start a closed sprint", nil)
	}

	sprint.Status = models.SprintActive
	if sprint.StartDate == nil {
		// An explicit planned start date is kept
		now := time.Now()
		sprint.StartDate = &now
	}

	var members []models.Issue
	sc.DB.Where("sprint_id = ?", sprint.ID).Find(&members)

	recipients := make([]uint, 0, len(members)+1)
	if project.OwnerID != user.ID {
		recipients = append(recipients, project.OwnerID)
	}
	for _, issue := range members {
		if issue.AssigneeID != nil && *issue.AssigneeID != user.ID {
			recipients = append(recipients, *issue.AssigneeID)
		}
	}

	tx := sc.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Save(&sprint).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to start sprint", err)
	}
	message := fmt.Sprintf("Sprint \"%s\" started", sprint.Name)
	pending, err := sc.Notifier.Send(tx, recipients, message, models.RelatedSprint, sprint.ID)
	if err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to start sprint", err)
	}
	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to start sprint", err)
	}
	sc.Notifier.Publish(sc.DB, pending)

	utils.LogEvent("sprint_started", map[string]interface{}{
		"sprint_id":  sprint.ID,
		"project_id": sprint.ProjectID,
	})

	return c.JSON(utils.SuccessResponse(sprint))
}

// CloseSprint closes a sprint and returns its unfinished issues to the
// backlog. Issues already Done stay attached for reporting.
func (sc *SprintController) CloseSprint(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	sprintID := utils.ParseUint(c.Params("id"))

	var sprint models.Sprint
	if err := sc.DB.First(&sprint, sprintID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sprint not found", nil)
	}
	var project models.Project
	if err := sc.DB.First(&project, sprint.ProjectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load project", err)
	}

	if !utils.Can(user, utils.ActSprintManage, utils.Resource{
		ProjectOwnerID: project.OwnerID,
		ProjectLeadID:  project.LeadID,
	}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Not allowed to manage sprints in this project", nil)
	}

	if sprint.Status == models.SprintClosed {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Sprint is already closed", nil)
	}

	now := time.Now()
	sprint.Status = models.SprintClosed
	sprint.ClosedAt = &now
	if sprint.EndDate == nil {
		sprint.EndDate = &now
	}

	tx := sc.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// Collect recipients before members are moved out
	var members []models.Issue
	if err := tx.Where("sprint_id = ?", sprint.ID).Find(&members).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load sprint issues", err)
	}
	recipients := make([]uint, 0, len(members)+1)
	if project.OwnerID != user.ID {
		recipients = append(recipients, project.OwnerID)
	}
	for _, issue := range members {
		if issue.AssigneeID != nil && *issue.AssigneeID != user.ID {
			recipients = append(recipients, *issue.AssigneeID)
		}
	}

	res := tx.Model(&models.Issue{}).
		Where("sprint_id = ? AND status <> ?", sprint.ID, models.StatusDone).
		Update("sprint_id", nil)
	if res.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to move issues to backlog", res.Error)
	}
	moved := res.RowsAffected

	if err := tx.Save(&sprint).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to close sprint", err)
	}

	message := fmt.Sprintf("Sprint \"%s\" closed. %d issue(s) moved back to backlog", sprint.Name, moved)
	pending, err := sc.Notifier.Send(tx, recipients, message, models.RelatedSprint, sprint.ID)
	if err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to close sprint", err)
	}

	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to close sprint", err)
	}
	sc.Notifier.Publish(sc.DB, pending)

	utils.LogEvent("sprint_closed", map[string]interface{}{
		"sprint_id":    sprint.ID,
		"project_id":   sprint.ProjectID,
		"moved_issues": moved,
	})

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"sprint":       sprint,
		"moved_issues": moved,
	}))
}

// UpdateSprint edits a sprint. The name is always editable; dates only
// while the sprint is still planning. Date edits on an active or closed
// sprint are ignored rather than rejected.
func (sc *SprintController) UpdateSprint(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	sprintID := utils.ParseUint(c.Params("id"))

	var sprint models.Sprint
	if err := sc.DB.First(&sprint, sprintID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sprint not found", nil)
	}
	var project models.Project
	if err := sc.DB.First(&project, sprint.ProjectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load project", err)
	}

	if !utils.Can(user, utils.ActSprintManage, utils.Resource{
		ProjectOwnerID: project.OwnerID,
		ProjectLeadID:  project.LeadID,
	}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Not allowed to manage sprints in this project", nil)
	}

	var input struct {
		Name      *string `json:"name" validate:"omitempty,min=1,max=200"`
		StartDate *string `json:"start_date"`
		EndDate   *string `json:"end_date"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if input.Name != nil {
		sprint.Name = *input.Name
	}
	if sprint.Status == models.SprintPlanning {
		if input.StartDate != nil {
			start, err := utils.ParseDate(*input.StartDate)
			if err != nil {
				return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid start_date", err)
			}
			sprint.StartDate = start
		}
		if input.EndDate != nil {
			end, err := utils.ParseDate(*input.EndDate)
			if err != nil {
				return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid end_date", err)
			}
			sprint.EndDate = end
		}
		if sprint.StartDate != nil && sprint.EndDate != nil && !sprint.StartDate.Before(*sprint.EndDate) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Sprint start date must be before its end date", nil)
		}
	}

	if err := sc.DB.Save(&sprint).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update sprint", err)
	}
	return c.JSON(utils.SuccessResponse(sprint))
}

// DeleteSprint removes a sprint, returning every member issue to the
// backlog regardless of status and pruning the sprint's notifications.
// Admin only.
func (sc *SprintController) DeleteSprint(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	if !utils.Can(user, utils.ActSprintDelete, utils.Resource{}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Only admins can delete sprints", nil)
	}

	sprintID := utils.ParseUint(c.Params("id"))
	var sprint models.Sprint
	if err := sc.DB.First(&sprint, sprintID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sprint not found", nil)
	}

	tx := sc.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	res := tx.Model(&models.Issue{}).Where("sprint_id = ?", sprint.ID).Update("sprint_id", nil)
	if res.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to move issues to backlog", res.Error)
	}
	moved := res.RowsAffected

	res = tx.Unscoped().Where("related_type = ? AND related_id = ?", models.RelatedSprint, sprint.ID).Delete(&models.Notification{})
	if res.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete notifications", res.Error)
	}
	deletedNotifications := res.RowsAffected

	if err := tx.Unscoped().Delete(&sprint).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete sprint", err)
	}

	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete sprint", err)
	}

	utils.LogEvent("sprint_deleted", map[string]interface{}{
		"sprint_id":    sprint.ID,
		"project_id":   sprint.ProjectID,
		"moved_issues": moved,
	})

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"moved_issues":          moved,
		"deleted_notifications": deletedNotifications,
	}))
}

// GetBurndown computes the day-by-day count of not-yet-done member
// issues across the sprint's date range. The range runs from the start
// date to the end date, or today while the sprint has no end.
func (sc *SprintController) GetBurndown(c *fiber.Ctx) error {
	sprintID := utils.ParseUint(c.Params("id"))

	var sprint models.Sprint
	if err := sc.DB.First(&sprint, sprintID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sprint not found", nil)
	}
	if sprint.StartDate == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Sprint has no start date", nil)
	}

	var members []models.Issue
	if err := sc.DB.Where("sprint_id = ?", sprint.ID).Find(&members).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load sprint issues", err)
	}

	start := truncateToDay(*sprint.StartDate)
	var end time.Time
	if sprint.EndDate != nil {
		end = truncateToDay(*sprint.EndDate)
	} else {
		end = truncateToDay(time.Now())
	}
	if end.Before(start) {
		end = start
	}

	points := make([]fiber.Map, 0)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		dayEnd := day.AddDate(0, 0, 1)
		remaining := 0
		for _, issue := range members {
			// An issue finished during the day no longer counts at its close
			if issue.DoneAt == nil || !issue.DoneAt.Before(dayEnd) {
				remaining++
			}
		}
		points = append(points, fiber.Map{
			"date":      day.Format("2006-01-02"),
			"remaining": remaining,
		})
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"sprint_id":    sprint.ID,
		"total_issues": len(members),
		"points":       points,
	}))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
