// ABOUTME: Canonical notification shape and keyword-based category classification
// ABOUTME: Categories are derived from title+body when the backend omits them

package notify

import (
	"strings"
	"time"

	"github.com/sgmarket/pulse-client/internal/rest"
)

// Category labels a notification for display treatment.
type Category string

const (
	CategorySuccess Category = "success"
	CategoryError   Category = "error"
	CategoryWarning Category = "warning"
	CategoryInfo    Category = "info"
)

// Notification is the canonical, normalized notification delivered to
// consumers, independent of the backend's wire format.
type Notification struct {
	ID          string
	Title       string
	Body        string
	Category    Category
	IsRead      bool
	OccurredAt  time.Time
	RecipientID string
	// Fresh marks notifications that occurred within the configured recency
	// window. Display hint only; it never affects dedup.
	Fresh bool
}

// Keyword tables checked in priority order: success, error, warning, info.
// The backend writes titles in Vietnamese; English synonyms cover the few
// system-generated records.
var (
	successKeywords = []string{
		"thành công", "phê duyệt", "đã duyệt", "hoàn tất", "hoàn thành",
		"success", "approved", "completed",
	}
	errorKeywords = []string{
		"thất bại", "từ chối", "lỗi", "bị hủy", "bị huỷ",
		"failed", "error", "rejected", "denied",
	}
	warningKeywords = []string{
		"cảnh báo", "sắp hết hạn", "hết hạn", "lưu ý",
		"warning", "expiring", "expired",
	}
)

// Classify derives a category from title+body by keyword match, checked in
// the priority order success, error, warning; anything else is info.
func Classify(title, body string) Category {
	text := strings.ToLower(title + " " + body)

	for _, kw := range successKeywords {
		if strings.Contains(text, kw) {
			return CategorySuccess
		}
	}
	for _, kw := range errorKeywords {
		if strings.Contains(text, kw) {
			return CategoryError
		}
	}
	for _, kw := range warningKeywords {
		if strings.Contains(text, kw) {
			return CategoryWarning
		}
	}
	return CategoryInfo
}

// fromRecord maps a raw record to the canonical shape, classifying the
// category when the backend did not supply one.
func fromRecord(rec rest.NotificationRecord, recencyWindow time.Duration) Notification {
	category := Category(strings.ToLower(rec.Category))
	switch category {
	case CategorySuccess, CategoryError, CategoryWarning, CategoryInfo:
		// backend supplied a known category
	default:
		category = Classify(rec.Title, rec.Body)
	}

	occurred := rec.CreatedAt.Time
	return Notification{
		ID:          string(rec.ID),
		Title:       rec.Title,
		Body:        rec.Body,
		Category:    category,
		IsRead:      rec.Read(),
		OccurredAt:  occurred,
		RecipientID: string(rec.RecipientID),
		Fresh:       !occurred.IsZero() && time.Since(occurred) <= recencyWindow,
	}
}
