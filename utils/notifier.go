package utils

import (
	"time"

	"gorm.io/gorm"

	"taskory/config"
	"taskory/models"
)

// NotificationPayload is the shape live websocket clients receive for
// each freshly created notification row.
type NotificationPayload struct {
	ID          uint      `json:"id"`
	Message     string    `json:"message"`
	RelatedType string    `json:"related_type"`
	RelatedID   uint      `json:"related_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notifier appends notification rows and fans them out to connected
// clients and, when SMTP is configured, to email.
type Notifier struct {
	Hub *NotificationHub
}

func NewNotifier(hub *NotificationHub) *Notifier {
	return &Notifier{Hub: hub}
}

// Send writes one unread notification per distinct recipient inside tx.
// Zero ids are dropped, duplicates collapsed, an empty set is a no-op.
// Rows are returned so the caller can Publish them once the surrounding
// transaction has committed.
func (n *Notifier) Send(tx *gorm.DB, userIDs []uint, message, relatedType string, relatedID uint) ([]models.Notification, error) {
	recipients := dedupeIDs(userIDs)
	if len(recipients) == 0 {
		return nil, nil
	}

	rows := make([]models.Notification, 0, len(recipients))
	for _, id := range recipients {
		rows = append(rows, models.Notification{
			UserID:      id,
			Message:     message,
			RelatedType: relatedType,
			RelatedID:   relatedID,
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Publish pushes committed notification rows to live clients and mails
// them out fire-and-forget. Call only after the creating transaction
// committed, so clients never see rows that were rolled back.
func (n *Notifier) Publish(db *gorm.DB, rows []models.Notification) {
	if len(rows) == 0 {
		return
	}

	for _, row := range rows {
		if n.Hub != nil {
			n.Hub.Push(row.UserID, NotificationPayload{
				ID:          row.ID,
				Message:     row.Message,
				RelatedType: row.RelatedType,
				RelatedID:   row.RelatedID,
				CreatedAt:   row.CreatedAt,
			})
		}
	}

	go n.mailOut(db, rows)
}

func (n *Notifier) mailOut(db *gorm.DB, rows []models.Notification) {
	if !config.AppConfig.SMTP.Configured() {
		return
	}

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}

	var users []models.User
	if err := db.Where("id IN ?", dedupeIDs(ids)).Find(&users).Error; err != nil {
		LogError("notification_mailout", err, map[string]interface{}{"recipients": len(ids)})
		return
	}
	emails := make(map[uint]string, len(users))
	for _, u := range users {
		emails[u.ID] = u.Email
	}

	for _, row := range rows {
		addr, ok := emails[row.UserID]
		if !ok {
			continue
		}
		if err := SendNotificationEmail(addr, row.Message); err != nil {
			LogError("notification_email", err, map[string]interface{}{
				"user_id":         row.UserID,
				"notification_id": row.ID,
			})
		}
	}
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
