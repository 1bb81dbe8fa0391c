package handlers

import (
	"net/http"
	"time"

	"p9e.in/fixflow/config"
	"p9e.in/fixflow/models"
)

// ListNotifications returns the caller's notifications, newest first
func ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	q := config.DB.Where("recipient_id = ?", actor.UserID)
	if r.URL.Query().Get("unread") == "true" {
		q = q.Where("read_at IS NULL")
	}

	var notifications []models.Notification
	if err := q.Order("created_at DESC").Limit(100).Find(&notifications).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

// GetUnreadCount returns how many notifications the caller has not read
func GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	var count int64
	if err := config.DB.Model(&models.Notification{}).
		Where("recipient_id = ? AND read_at IS NULL", actor.UserID).
		Count(&count).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unread": count})
}

// MarkNotificationRead marks one of the caller's notifications as read
func MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	now := time.Now()
	res := config.DB.Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, actor.UserID).
		Updates(map[string]interface{}{
			"read_at": now,
			"status":  models.NotificationStatusRead,
		})
	if res.Error != nil {
		http.Error(w, "db error: "+res.Error.Error(), http.StatusInternalServerError)
		return
	}
	if res.RowsAffected == 0 {
		http.Error(w, "notification not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead marks every unread notification of the caller
func MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	now := time.Now()
	if err := config.DB.Model(&models.Notification{}).
		Where("recipient_id = ? AND read_at IS NULL", actor.UserID).
		Updates(map[string]interface{}{
			"read_at": now,
			"status":  models.NotificationStatusRead,
		}).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
