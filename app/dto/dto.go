package dto

// APIResponse represents the standard API response structure
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty" validate:"omitempty"`
	Error   any    `json:"error,omitempty" validate:"omitempty"`
}

// ErrorDetail represents error details in API responses
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}

// PaginationInfo describes one page of a listing
type PaginationInfo struct {
	Total      int64 `json:"total"`
	Page       uint  `json:"page"`
	PageSize   uint  `json:"page_size"`
	TotalPages uint  `json:"total_pages"`
}

// StatusHistoryItem is one recorded transition of a workflow entity
type StatusHistoryItem struct {
	Action    string  `json:"action"`
	OldStatus string  `json:"old_status"`
	NewStatus string  `json:"new_status"`
	ActorID   *uint   `json:"actor_id,omitempty"`
	ActorRole *string `json:"actor_role,omitempty"`
	Note      *string `json:"note,omitempty"`
	Metadata  any     `json:"metadata,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// StatusHistoryResponse lists the transitions of one entity, oldest first
type StatusHistoryResponse struct {
	EntityType string              `json:"entity_type"`
	EntityUUID string              `json:"entity_uuid"`
	Items      []StatusHistoryItem `json:"items"`
}

// ReasonRequest carries the mandatory justification of a reject or cancel action
type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,min=10,max=1000"`
}

// NoteRequest carries the optional note of a transition without payload
type NoteRequest struct {
	Note *string `json:"note,omitempty" validate:"omitempty,max=1000"`
}
