package dto

// BulkIDsRequest selects records for a staff bulk action.
type BulkIDsRequest struct {
	IDs []int64 `json:"ids"`
}

// RejectListingsRequest rejects listings with an optional reason.
type RejectListingsRequest struct {
	IDs    []int64 `json:"ids"`
	Reason string  `json:"reason"`
}

// BulkActionResponse reports how many records changed.
type BulkActionResponse struct {
	Updated int64 `json:"updated"`
}
