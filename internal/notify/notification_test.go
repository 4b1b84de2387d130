// ABOUTME: Tests for notification normalization and keyword classification
// ABOUTME: Verifies category priority order and the recency window hint

package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sgmarket/pulse-client/internal/rest"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		body  string
		want  Category
	}{
		{"vietnamese approval", "Đã phê duyệt", "", CategorySuccess},
		{"vietnamese success", "Giao dịch thành công", "", CategorySuccess},
		{"vietnamese rejection", "Tin đăng bị từ chối", "", CategoryError},
		{"vietnamese warning", "Cảnh báo: tin sắp hết hạn", "", CategoryWarning},
		{"english failure", "Payment failed", "please retry", CategoryError},
		{"body carries the keyword", "Cập nhật", "đơn hàng hoàn tất", CategorySuccess},
		{"no keyword", "Chào mừng", "tin nhắn mới", CategoryInfo},
		{"empty", "", "", CategoryInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.title, tt.body))
		})
	}
}

func TestClassify_SuccessWinsOverError(t *testing.T) {
	// Priority order: success is checked before error.
	got := Classify("Khiếu nại được phê duyệt", "đơn trước đó thất bại")
	assert.Equal(t, CategorySuccess, got)
}

func TestFromRecord_BackendCategoryWins(t *testing.T) {
	rec := rest.NotificationRecord{
		ID:       "7",
		Title:    "Đã phê duyệt", // would classify as success
		Category: "warning",
	}
	n := fromRecord(rec, time.Minute)
	assert.Equal(t, CategoryWarning, n.Category)
}

func TestFromRecord_UnknownCategoryIsClassified(t *testing.T) {
	rec := rest.NotificationRecord{
		ID:       "7",
		Title:    "Đã phê duyệt",
		Category: "celebration", // not a known class
	}
	n := fromRecord(rec, time.Minute)
	assert.Equal(t, CategorySuccess, n.Category)
}

func TestFromRecord_Freshness(t *testing.T) {
	recent := rest.NotificationRecord{ID: "1", CreatedAt: rest.FlexTime{Time: time.Now().Add(-time.Minute)}}
	stale := rest.NotificationRecord{ID: "2", CreatedAt: rest.FlexTime{Time: time.Now().Add(-time.Hour)}}

	assert.True(t, fromRecord(recent, 3*time.Minute).Fresh)
	assert.False(t, fromRecord(stale, 3*time.Minute).Fresh)
}
