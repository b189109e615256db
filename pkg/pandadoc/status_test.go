package pandadoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapStatus_KnownStatuses(t *testing.T) {
	cases := []struct {
		status string
		code   int
		stage  string
	}{
		{"document.draft", 0, "draft"},
		{"document.sent", 1, "sent"},
		{"document.completed", 2, "completed"},
		{"document.uploaded", 3, "uploaded"},
		{"document.error", 4, "error"},
		{"document.viewed", 5, "viewed"},
		{"document.waiting_approval", 6, "waiting_approval"},
		{"document.approved", 7, "approved"},
		{"document.rejected", 8, "rejected"},
		{"document.waiting_pay", 9, "waiting_pay"},
		{"document.paid", 10, "paid"},
		{"document.voided", 11, "voided"},
		{"document.declined", 12, "declined"},
	}

	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			info := MapStatus(tc.status)
			assert.Equal(t, tc.code, info.Code)
			assert.Equal(t, tc.stage, info.Stage)
		})
	}
}

func TestMapStatus_UnknownMapsWithoutError(t *testing.T) {
	info := MapStatus("document.some_future_status")
	assert.Equal(t, -1, info.Code)
	assert.Equal(t, "unknown", info.Stage)
}

func TestStatusTable_ThirteenEntries(t *testing.T) {
	assert.Len(t, statusTable, 13)
}
