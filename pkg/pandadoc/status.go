package pandadoc

// StatusInfo is the numeric code and coarse stage derived from a provider
// status string.
type StatusInfo struct {
	Code  int
	Stage string
}

// statusTable maps the 13 known provider status strings to numeric codes
// 0-12 and coarse stages. Reproduced verbatim from the provider contract;
// do not reorder.
var statusTable = map[string]StatusInfo{
	"document.draft":            {Code: 0, Stage: "draft"},
	"document.sent":             {Code: 1, Stage: "sent"},
	"document.completed":        {Code: 2, Stage: "completed"},
	"document.uploaded":         {Code: 3, Stage: "uploaded"},
	"document.error":            {Code: 4, Stage: "error"},
	"document.viewed":           {Code: 5, Stage: "viewed"},
	"document.waiting_approval": {Code: 6, Stage: "waiting_approval"},
	"document.approved":         {Code: 7, Stage: "approved"},
	"document.rejected":         {Code: 8, Stage: "rejected"},
	"document.waiting_pay":      {Code: 9, Stage: "waiting_pay"},
	"document.paid":             {Code: 10, Stage: "paid"},
	"document.voided":           {Code: 11, Stage: "voided"},
	"document.declined":         {Code: 12, Stage: "declined"},
}

// MapStatus resolves a provider status string to its code and stage.
// Unknown statuses map to code -1, stage "unknown" without error so a new
// provider status never breaks a sync.
func MapStatus(status string) StatusInfo {
	if info, ok := statusTable[status]; ok {
		return info
	}
	return StatusInfo{Code: -1, Stage: "unknown"}
}
