package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taskory/models"
	"taskory/utils"
)

type NotificationController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewNotificationController(db *gorm.DB, logger *log.Logger) *NotificationController {
	return &NotificationController{
		DB:     db,
		Logger: logger,
	}
}

// GetNotifications lists the caller's notifications newest first.
// ?unread=true restricts to unread rows.
func (nc *NotificationController) GetNotifications(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query := nc.DB.Where("user_id = ?", user.ID)
	if c.Query("unread") == "true" {
		query = query.Where("read = ?", false)
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC").Limit(100).Find(&notifications).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list notifications", err)
	}
	return c.JSON(utils.SuccessResponse(notifications))
}

// MarkRead flags one of the caller's notifications as read
func (nc *NotificationController) MarkRead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	notificationID := utils.ParseUint(c.Params("id"))

	var notification models.Notification
	if err := nc.DB.First(&notification, notificationID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Notification not found", nil)
	}

	if !utils.Can(user, utils.ActNotificationRead, utils.Resource{CreatorID: notification.UserID}) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Not your notification", nil)
	}

	notification.Read = true
	if err := nc.DB.Save(&notification).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update notification", err)
	}
	return c.JSON(utils.SuccessResponse(notification))
}

// MarkAllRead flags every unread notification of the caller as read
func (nc *NotificationController) MarkAllRead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	res := nc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", user.ID, false).
		Update("read", true)
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update notifications", res.Error)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"marked_read": res.RowsAffected}))
}

// GetUnreadCount returns the caller's unread notification count
func (nc *NotificationController) GetUnreadCount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var count int64
	if err := nc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", user.ID, false).
		Count(&count).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count notifications", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"unread": count}))
}
