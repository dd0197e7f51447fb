package controller

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskory/config"
	"taskory/models"
	"taskory/utils"
)

type AttachmentController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewAttachmentController(db *gorm.DB, logger *log.Logger) *AttachmentController {
	return &AttachmentController{
		DB:     db,
		Logger: logger,
	}
}

// UploadAttachment stores a multipart file under the upload directory.
// Files are renamed to a random name; the original name is kept on the
// record for downloads.
func (ac *AttachmentController) UploadAttachment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	issueID := utils.ParseUint(c.Params("id"))

	var issue models.Issue
	if err := ac.DB.First(&issue, issueID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Issue not found", nil)
	}

	if !utils.Can(user, utils.ActAttachmentCreate, utils.Resource{}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Viewers cannot upload attachments", nil)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File upload error", err)
	}

	maxBytes := int64(config.AppConfig.MaxUploadMB) << 20
	if file.Size > maxBytes {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			fmt.Sprintf("File too large (max %dMB)", config.AppConfig.MaxUploadMB), nil)
	}

	if err := os.MkdirAll(config.AppConfig.UploadDir, 0o755); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to prepare upload directory", err)
	}

	storedName := uuid.NewString() + filepath.Ext(file.Filename)
	path := filepath.Join(config.AppConfig.UploadDir, storedName)
	if err := c.SaveFile(file, path); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to store file", err)
	}

	attachment := models.Attachment{
		IssueID:      issue.ID,
		UploaderID:   user.ID,
		StoredName:   storedName,
		OriginalName: file.Filename,
		Size:         file.Size,
		MimeType:     file.Header.Get("Content-Type"),
	}
	if err := ac.DB.Create(&attachment).Error; err != nil {
		// Orphaned file cleanup before reporting the failure
		os.Remove(path)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save attachment", err)
	}

	utils.LogEvent("attachment_uploaded", map[string]interface{}{
		"attachment_id": attachment.ID,
		"issue_id":      issue.ID,
		"size":          attachment.Size,
	})

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(attachment))
}

// GetAttachments lists an issue's attachments
func (ac *AttachmentController) GetAttachments(c *fiber.Ctx) error {
	issueID := utils.ParseUint(c.Params("id"))

	var issue models.Issue
	if err := ac.DB.First(&issue, issueID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Issue not found", nil)
	}

	var attachments []models.Attachment
	if err := ac.DB.Where("issue_id = ?", issue.ID).Order("created_at").Find(&attachments).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list attachments", err)
	}
	return c.JSON(utils.SuccessResponse(attachments))
}

// DownloadAttachment streams the stored file under its original name
func (ac *AttachmentController) DownloadAttachment(c *fiber.Ctx) error {
	attachmentID := utils.ParseUint(c.Params("id"))

	var attachment models.Attachment
	if err := ac.DB.First(&attachment, attachmentID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Attachment not found", nil)
	}

	path := filepath.Join(config.AppConfig.UploadDir, attachment.StoredName)
	if _, err := os.Stat(path); err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Attachment file missing", nil)
	}
	return c.Download(path, attachment.OriginalName)
}

// DeleteAttachment removes the record, then the file best-effort.
// Uploader, admin, or project owner.
func (ac *AttachmentController) DeleteAttachment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	attachmentID := utils.ParseUint(c.Params("id"))

	var attachment models.Attachment
	if err := ac.DB.First(&attachment, attachmentID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Attachment not found", nil)
	}
	var issue models.Issue
	if err := ac.DB.First(&issue, attachment.IssueID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load issue", err)
	}
	var project models.Project
	if err := ac.DB.First(&project, issue.ProjectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load project", err)
	}

	if !utils.Can(user, utils.ActAttachmentDelete, utils.Resource{
		ProjectOwnerID: project.OwnerID,
		CreatorID:      attachment.UploaderID,
	}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Not allowed to delete this attachment", nil)
	}

	if err := ac.DB.Unscoped().Delete(&attachment).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete attachment", err)
	}

	path := filepath.Join(config.AppConfig.UploadDir, attachment.StoredName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		utils.LogError("attachment_file_delete", err, map[string]interface{}{
			"attachment_id": attachment.ID,
			"path":          path,
		})
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}
