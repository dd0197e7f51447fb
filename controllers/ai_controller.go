package controller

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taskory/models"
	"taskory/utils"
)

type AIController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewAIController(db *gorm.DB, logger *log.Logger) *AIController {
	return &AIController{
		DB:     db,
		Logger: logger,
	}
}

// AnalyzeIssue returns the assistant's analysis of one issue
func (ai *AIController) AnalyzeIssue(c *fiber.Ctx) error {
	issueID := utils.ParseUint(c.Params("id"))

	var issue models.Issue
	if err := ai.DB.First(&issue, issueID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Issue not found", nil)
	}

	return c.JSON(utils.SuccessResponse(utils.AnalyzeIssue(&issue)))
}

// GetSimilarIssues ranks the project's other issues by similarity
func (ai *AIController) GetSimilarIssues(c *fiber.Ctx) error {
	issueID := utils.ParseUint(c.Params("id"))

	var issue models.Issue
	if err := ai.DB.First(&issue, issueID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Issue not found", nil)
	}

	var candidates []models.Issue
	if err := ai.DB.Where("project_id = ?", issue.ProjectID).Find(&candidates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load issues", err)
	}

	return c.JSON(utils.SuccessResponse(utils.FindSimilarIssues(&issue, candidates)))
}

// GetActionItems extracts task-like lines from an issue's comments
func (ai *AIController) GetActionItems(c *fiber.Ctx) error {
	issueID := utils.ParseUint(c.Params("id"))

	var issue models.Issue
	if err := ai.DB.First(&issue, issueID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Issue not found", nil)
	}

	var comments []models.Comment
	if err := ai.DB.Where("issue_id = ?", issue.ID).Order("created_at").Find(&comments).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load comments", err)
	}

	return c.JSON(utils.SuccessResponse(utils.ExtractActionItems(comments)))
}

// AnalyzeSentiment grades a free-text fragment
func (ai *AIController) AnalyzeSentiment(c *fiber.Ctx) error {
	var input struct {
		Text string `json:"text" validate:"required,min=1,max=10000"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	return c.JSON(utils.SuccessResponse(utils.AnalyzeSentiment(input.Text)))
}

// SuggestOnIssue runs the analysis and persists it as an AI-suggestion
// comment on the issue. Such comments can never be edited.
func (ai *AIController) SuggestOnIssue(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	issueID := utils.ParseUint(c.Params("id"))

	var issue models.Issue
	if err := ai.DB.First(&issue, issueID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Issue not found", nil)
	}

	analysis := utils.AnalyzeIssue(&issue)
	comment := models.Comment{
		IssueID:        issue.ID,
		AuthorID:       user.ID,
		Content:        renderSuggestion(analysis),
		IsAISuggestion: true,
	}
	if err := ai.DB.Create(&comment).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save suggestion", err)
	}

	utils.LogEvent("ai_suggestion_saved", map[string]interface{}{
		"issue_id":   issue.ID,
		"comment_id": comment.ID,
	})

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"comment":  comment,
		"analysis": analysis,
	}))
}

func renderSuggestion(analysis utils.IssueAnalysis) string {
	var b strings.Builder
	b.WriteString("Summary: " + analysis.Summary + "\n")
	b.WriteString("Suggested priority: " + analysis.SuggestedPriority + "\n")
	if len(analysis.SuggestedLabels) > 0 {
		b.WriteString("Suggested labels: " + strings.Join(analysis.SuggestedLabels, ", ") + "\n")
	}
	b.WriteString("Estimated effort: " + analysis.TimeEstimate + "\n")
	for _, s := range analysis.Suggestions {
		b.WriteString("- " + s + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
