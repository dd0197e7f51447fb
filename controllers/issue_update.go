package controller

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"taskory/models"
	"taskory/utils"
)

// UpdateIssue applies a partial update. Pointer fields distinguish
// "absent" from "present"; an explicit zero id clears assignee, parent
// or sprint. Moving into "Done" stamps DoneAt, moving out clears it.
func (ic *IssueController) UpdateIssue(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	issueID := utils.ParseUint(c.Params("id"))

	var issue models.Issue
	if err := ic.DB.First(&issue, issueID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Issue not found", nil)
	}
	var project models.Project
	if err := ic.DB.First(&project, issue.ProjectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load project", err)
	}

	if !utils.Can(user, utils.ActIssueUpdate, utils.Resource{
		ProjectOwnerID: project.OwnerID,
		CreatorID:      issue.CreatorID,
		AssigneeID:     issue.AssigneeID,
	}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Not allowed to edit this issue", nil)
	}

	var input struct {
		Title       *string     `json:"title" validate:"omitempty,min=1,max=300"`
		Description *string     `json:"description"`
		Priority    *string     `json:"priority" validate:"omitempty,oneof=Critical High Medium Low"`
		Status      *string     `json:"status"`
		Labels      interface{} `json:"labels"`
		AssigneeID  *uint       `json:"assignee_id"`
		ParentID    *uint       `json:"parent_id"`
		SprintID    *uint       `json:"sprint_id"`
		DueDate     *string     `json:"due_date"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	oldStatus := issue.Status
	statusChanged := false
	if input.Status != nil {
		status := strings.TrimSpace(*input.Status)
		if status != "" && status != issue.Status {
			workflow, err := ensureWorkflow(ic.DB, issue.ProjectID)
			if err != nil {
				return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load workflow", err)
			}
			if !workflow.HasStatus(status) {
				return utils.ErrorResponse(c, fiber.StatusBadRequest, "Status is not part of the project workflow", nil)
			}
			issue.Status = status
			statusChanged = true
		}
	}
	if statusChanged {
		if issue.Status == models.StatusDone && oldStatus != models.StatusDone {
			now := time.Now()
			issue.DoneAt = &now
		} else if oldStatus == models.StatusDone && issue.Status != models.StatusDone {
			issue.DoneAt = nil
		}
	}

	assigneeChanged := false
	if input.AssigneeID != nil {
		if *input.AssigneeID == 0 {
			issue.AssigneeID = nil
		} else {
			var assignee models.User
			if err := ic.DB.First(&assignee, *input.AssigneeID).Error; err != nil {
				return utils.ErrorResponse(c, fiber.StatusNotFound, "Assignee not found", nil)
			}
			if issue.AssigneeID == nil || *issue.AssigneeID != *input.AssigneeID {
				issue.AssigneeID = input.AssigneeID
				assigneeChanged = true
			}
		}
	}

	if input.ParentID != nil {
		if *input.ParentID == 0 {
			issue.ParentID = nil
		} else {
			if *input.ParentID == issue.ID {
				return utils.ErrorResponse(c, fiber.StatusBadRequest, "An issue cannot be its own parent", nil)
			}
			var parent models.Issue
			if err := ic.DB.First(&parent, *input.ParentID).Error; err != nil {
				return utils.ErrorResponse(c, fiber.StatusNotFound, "Parent issue not found", nil)
			}
			if parent.ProjectID != issue.ProjectID {
				return utils.ErrorResponse(c, fiber.StatusBadRequest, "Parent issue must belong to the same project", nil)
			}
			issue.ParentID = input.ParentID
		}
	}

	if input.SprintID != nil {
		if *input.SprintID == 0 {
			issue.SprintID = nil
		} else {
			var sprint models.Sprint
			if err := ic.DB.First(&sprint, *input.SprintID).Error; err != nil {
				return utils.ErrorResponse(c, fiber.StatusNotFound, "Sprint not found", nil)
			}
			if sprint.ProjectID != issue.ProjectID {
				return utils.ErrorResponse(c, fiber.StatusBadRequest, "Sprint belongs to a different project", nil)
			}
			issue.SprintID = input.SprintID
		}
	}

	if input.DueDate != nil {
		dueDate, err := utils.ParseDate(*input.DueDate)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid due_date", err)
		}
		issue.DueDate = dueDate
	}
	if input.Labels != nil {
		issue.Labels = utils.NormalizeLabels(input.Labels)
	}
	if input.Title != nil {
		issue.Title = *input.Title
	}
	if input.Description != nil {
		issue.Description = *input.Description
	}
	if input.Priority != nil {
		issue.Priority = *input.Priority
	}

	tx := ic.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Save(&issue).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update issue", err)
	}

	pending := make([]models.Notification, 0)
	if statusChanged {
		recipients := make([]uint, 0, 2)
		if issue.AssigneeID != nil && *issue.AssigneeID != user.ID {
			recipients = append(recipients, *issue.AssigneeID)
		}
		if project.OwnerID != user.ID {
			recipients = append(recipients, project.OwnerID)
		}
		message := fmt.Sprintf("Issue \"%s\" status changed to %s", issue.Title, issue.Status)
		rows, err := ic.Notifier.Send(tx, recipients, message, models.RelatedIssue, issue.ID)
		if err != nil {
			tx.Rollback()
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update issue", err)
		}
		pending = append(pending, rows...)
	}
	if assigneeChanged && issue.AssigneeID != nil && *issue.AssigneeID != user.ID {
		message := fmt.Sprintf("You have been assigned to issue \"%s\"", issue.Title)
		rows, err := ic.Notifier.Send(tx, []uint{*issue.AssigneeID}, message, models.RelatedIssue, issue.ID)
		if err != nil {
			tx.Rollback()
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update issue", err)
		}
		pending = append(pending, rows...)
	}

	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update issue", err)
	}
	ic.Notifier.Publish(ic.DB, pending)

	return c.JSON(utils.SuccessResponse(issue))
}
