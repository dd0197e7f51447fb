package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taskory/models"
	"taskory/utils"
)

type CommentController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCommentController(db *gorm.DB, logger *log.Logger) *CommentController {
	return &CommentController{
		DB:     db,
		Logger: logger,
	}
}

// CreateComment adds a comment to an issue
func (cc *CommentController) CreateComment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	issueID := utils.ParseUint(c.Params("id"))

	var issue models.Issue
	if err := cc.DB.First(&issue, issueID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Issue not found", nil)
	}

	if !utils.Can(user, utils.ActCommentCreate, utils.Resource{}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Viewers cannot comment", nil)
	}

	var input struct {
		Content string `json:"content" validate:"required,min=1,max=5000"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	comment := models.Comment{
		IssueID:  issue.ID,
		AuthorID: user.ID,
		Content:  input.Content,
	}
	if err := cc.DB.Create(&comment).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create comment", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(comment))
}

// GetComments lists an issue's comments oldest first
func (cc *CommentController) GetComments(c *fiber.Ctx) error {
	issueID := utils.ParseUint(c.Params("id"))

	var issue models.Issue
	if err := cc.DB.First(&issue, issueID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Issue not found", nil)
	}

	var comments []models.Comment
	if err := cc.DB.Where("issue_id = ?", issue.ID).Order("created_at").Find(&comments).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list comments", err)
	}
	return c.JSON(utils.SuccessResponse(comments))
}

// UpdateComment edits a comment's content. Only the author may edit,
// and AI suggestions are immutable.
func (cc *CommentController) UpdateComment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	commentID := utils.ParseUint(c.Params("id"))

	var comment models.Comment
	if err := cc.DB.First(&comment, commentID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Comment not found", nil)
	}

	if !utils.Can(user, utils.ActCommentUpdate, utils.Resource{
		CreatorID:    comment.AuthorID,
		AISuggestion: comment.IsAISuggestion,
	}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Not allowed to edit this comment", nil)
	}

	var input struct {
		Content string `json:"content" validate:"required,min=1,max=5000"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	comment.Content = input.Content
	comment.Edited = true
	if err := cc.DB.Save(&comment).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update comment", err)
	}

	return c.JSON(utils.SuccessResponse(comment))
}

// DeleteComment removes a comment. Author, admin, or project owner.
func (cc *CommentController) DeleteComment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	commentID := utils.ParseUint(c.Params("id"))

	var comment models.Comment
	if err := cc.DB.First(&comment, commentID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Comment not found", nil)
	}
	var issue models.Issue
	if err := cc.DB.First(&issue, comment.IssueID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load issue", err)
	}
	var project models.Project
	if err := cc.DB.First(&project, issue.ProjectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load project", err)
	}

	if !utils.Can(user, utils.ActCommentDelete, utils.Resource{
		ProjectOwnerID: project.OwnerID,
		CreatorID:      comment.AuthorID,
	}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Not allowed to delete this comment", nil)
	}

	if err := cc.DB.Unscoped().Delete(&comment).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete comment", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}
