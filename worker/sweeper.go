package worker

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"taskory/models"
)

// Sweeper evicts expired sessions every hour and, once a day, prunes
// read notifications older than the retention window.
type Sweeper struct {
	DB     *gorm.DB
	Logger *log.Logger
}

const notificationRetention = 30 * 24 * time.Hour

func NewSweeper(db *gorm.DB, logger *log.Logger) *Sweeper {
	return &Sweeper{
		DB:     db,
		Logger: logger,
	}
}

func (sw *Sweeper) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	sw.Logger.Println("Sweeper started")

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	var lastPrune time.Time
	for {
		select {
		case <-ctx.Done():
			sw.Logger.Println("Sweeper shutting down...")
			return
		case <-ticker.C:
			sw.sweepSessions()
			if time.Since(lastPrune) >= 24*time.Hour {
				sw.pruneNotifications()
				lastPrune = time.Now()
			}
		}
	}
}

func (sw *Sweeper) sweepSessions() {
	cutoff := time.Now().Add(-models.SessionTTL)
	res := sw.DB.Unscoped().Where("created_at < ?", cutoff).Delete(&models.Session{})
	if res.Error != nil {
		sw.Logger.Printf("Error sweeping sessions: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		sw.Logger.Printf("Evicted %d expired session(s)", res.RowsAffected)
	}
}

func (sw *Sweeper) pruneNotifications() {
	cutoff := time.Now().Add(-notificationRetention)
	res := sw.DB.Unscoped().
		Where("read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if res.Error != nil {
		sw.Logger.Printf("Error pruning notifications: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		sw.Logger.Printf("Pruned %d read notification(s)", res.RowsAffected)
	}
}
