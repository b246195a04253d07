package api

import (
	"encoding/json"
	"time"

	"github.com/dimaystinov/bot-hnushka/internal/domain"
)

// SubmitItemRequest is the JSON body of POST /api/items.
type SubmitItemRequest struct {
	SourceLocator string `json:"source_locator" validate:"required,max=2048"`
	MediaKind     string `json:"media_kind"     validate:"omitempty,oneof=voice audio video_note"`
	LanguageHint  string `json:"language_hint"  validate:"omitempty,max=8"`
}

// ItemResponse is the client view of a work item.
type ItemResponse struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	MediaKind     string          `json:"media_kind"`
	LanguageHint  string          `json:"language_hint,omitempty"`
	QueuedAt      time.Time       `json:"queued_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	Transcript    *string         `json:"transcript,omitempty"`
	Category      string          `json:"category,omitempty"`
	CategoryLabel string          `json:"category_label,omitempty"`
	Confidence    float64         `json:"confidence"`
	Record        json.RawMessage `json:"record,omitempty"`
	FailureReason *string         `json:"failure_reason,omitempty"`
}

// ItemListResponse is the body of GET /api/items.
type ItemListResponse struct {
	Items []ItemResponse `json:"items"`
}

// itemToResponse converts a domain.WorkItem to an ItemResponse. Raw model
// output and the source locator stay server side.
func itemToResponse(item *domain.WorkItem) ItemResponse {
	resp := ItemResponse{
		ID:            item.ID.String(),
		Status:        string(item.Status),
		MediaKind:     string(item.MediaKind),
		LanguageHint:  item.LanguageHint,
		QueuedAt:      item.QueuedAt,
		StartedAt:     item.StartedAt,
		CompletedAt:   item.CompletedAt,
		Transcript:    item.Transcript,
		Confidence:    item.Confidence,
		Record:        item.ExtractedRecord,
		FailureReason: item.FailureReason,
	}
	if item.Category != nil {
		resp.Category = string(*item.Category)
		resp.CategoryLabel = item.Category.Label()
	}
	return resp
}
