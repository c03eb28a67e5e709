// Package activity writes the append-only audit trail. Entries are never
// updated or deleted.
package activity

import (
	"farmmarket/internal/model"
	"farmmarket/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Record appends one audit entry for the given user. A failed write is logged
// and swallowed: auditing must never fail the operation it describes.
func Record(db *gorm.DB, userID uint, action string) {
	entry := model.ActivityLog{UserID: userID, Action: action}
	if err := db.Create(&entry).Error; err != nil {
		logger.GetLogger().Error("Failed to record activity",
			zap.Uint("user_id", userID),
			zap.String("action", action),
			zap.Error(err))
	}
}

// Recent returns the newest entries, newest first.
func Recent(db *gorm.DB, limit int) ([]model.ActivityLog, error) {
	var logs []model.ActivityLog
	err := db.Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
