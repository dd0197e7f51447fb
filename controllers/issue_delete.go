package controller

import (
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"taskory/config"
	"taskory/models"
	"taskory/utils"
)

// DeleteIssue removes an issue and its direct children in one
// transaction, taking their comments, attachments and related
// notifications along. Attachment files are removed from disk
// best-effort after commit.
func (ic *IssueController) DeleteIssue(c *fiber.Ctx) error {
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

	if !utils.Can(user, utils.ActIssueDelete, utils.Resource{
		ProjectOwnerID: project.OwnerID,
		CreatorID:      issue.CreatorID,
		AssigneeID:     issue.AssigneeID,
	}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Not allowed to delete this issue", nil)
	}

	// Direct children come along; one level only
	var children []models.Issue
	ic.DB.Where("parent_id = ?", issue.ID).Find(&children)

	ids := make([]uint, 0, len(children)+1)
	ids = append(ids, issue.ID)
	for _, child := range children {
		ids = append(ids, child.ID)
	}

	var attachments []models.Attachment
	ic.DB.Where("issue_id IN ?", ids).Find(&attachments)

	tx := ic.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	res := tx.Unscoped().Where("issue_id IN ?", ids).Delete(&models.Attachment{})
	if res.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete attachments", res.Error)
	}
	deletedAttachments := res.RowsAffected

	res = tx.Unscoped().Where("issue_id IN ?", ids).Delete(&models.Comment{})
	if res.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete comments", res.Error)
	}
	deletedComments := res.RowsAffected

	res = tx.Unscoped().Where("related_type = ? AND related_id IN ?", models.RelatedIssue, ids).Delete(&models.Notification{})
	if res.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete notifications", res.Error)
	}
	deletedNotifications := res.RowsAffected

	res = tx.Unscoped().Where("id IN ?", ids).Delete(&models.Issue{})
	if res.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete issue", res.Error)
	}
	deletedIssues := res.RowsAffected

	if err := tx.Commit().Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete issue", err)
	}

	for _, attachment := range attachments {
		path := filepath.Join(config.AppConfig.UploadDir, attachment.StoredName)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			utils.LogError("attachment_file_delete", err, map[string]interface{}{
				"attachment_id": attachment.ID,
				"path":          path,
			})
		}
	}

	utils.LogEvent("issue_deleted", map[string]interface{}{
		"issue_id":       issue.ID,
		"project_id":     issue.ProjectID,
		"deleted_issues": deletedIssues,
	})

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"deleted_issues":        deletedIssues,
		"deleted_attachments":   deletedAttachments,
		"deleted_comments":      deletedComments,
		"deleted_notifications": deletedNotifications,
	}))
}
