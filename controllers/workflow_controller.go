package controller

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taskory/models"
	"taskory/utils"
)

type WorkflowController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewWorkflowController(db *gorm.DB, logger *log.Logger) *WorkflowController {
	return &WorkflowController{
		DB:     db,
		Logger: logger,
	}
}

// ensureWorkflow returns the project's workflow, creating the default
// pipeline on first access. Idempotent: one insert per project, ever.
// Works inside a caller's transaction when tx is one.
func ensureWorkflow(tx *gorm.DB, projectID uint) (*models.Workflow, error) {
	var workflow models.Workflow
	err := tx.Where("project_id = ?", projectID).First(&workflow).Error
	if err == nil {
		return &workflow, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	workflow = models.Workflow{
		ProjectID:   projectID,
		Statuses:    append([]string(nil), models.DefaultStatuses...),
		Transitions: map[string][]string{},
	}
	if err := tx.Create(&workflow).Error; err != nil {
		return nil, err
	}
	return &workflow, nil
}

// GetWorkflow returns the project's status pipeline, creating the
// default one on first access.
func (wc *WorkflowController) GetWorkflow(c *fiber.Ctx) error {
	projectID := utils.ParseUint(c.Params("id"))

	var project models.Project
	if err := wc.DB.First(&project, projectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	workflow, err := ensureWorkflow(wc.DB, project.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load workflow", err)
	}

	return c.JSON(utils.SuccessResponse(workflow))
}

// UpdateWorkflow replaces the status list and transitions wholesale.
// Issues left holding a status that was removed keep it; the board only
// groups statuses still in the list.
func (wc *WorkflowController) UpdateWorkflow(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	var project models.Project
	if err := wc.DB.First(&project, projectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found", nil)
	}

	if !utils.Can(user, utils.ActWorkflowUpdate, utils.Resource{
		ProjectOwnerID: project.OwnerID,
		ProjectLeadID:  project.LeadID,
	}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Not allowed to edit this workflow", nil)
	}

	var input struct {
		Statuses    []interface{}       `json:"statuses"`
		Transitions map[string][]string `json:"transitions"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	// Coerce entries to strings, dropping blanks
	statuses := make([]string, 0, len(input.Statuses))
	for _, raw := range input.Statuses {
		if s := strings.TrimSpace(fmt.Sprintf("%v", raw)); s != "" {
			statuses = append(statuses, s)
		}
	}
	if len(statuses) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Statuses must be a non-empty list", nil)
	}

	workflow, err := ensureWorkflow(wc.DB, project.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load workflow", err)
	}

	workflow.Statuses = statuses
	if input.Transitions != nil {
		workflow.Transitions = input.Transitions
	} else {
		workflow.Transitions = map[string][]string{}
	}

	if err := wc.DB.Save(workflow).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update workflow", err)
	}

	utils.LogEvent("workflow_updated", map[string]interface{}{
		"project_id": project.ID,
		"statuses":   statuses,
	})

	return c.JSON(utils.SuccessResponse(workflow))
}
