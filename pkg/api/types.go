package api

// DownloadPostRequest is the body of POST /api/v1/download/post
type DownloadPostRequest struct {
	PostID          string  `json:"post_id"`
	TargetDirectory *string `json:"target_directory"`
}

// DownloadResponse is returned for successful retrievals
type DownloadResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	PostID  string `json:"post_id"`
}

// ErrorResponse is returned for every failure
type ErrorResponse struct {
	Status string `json:"status,omitempty"`
	Detail string `json:"detail"`
	PostID string `json:"post_id,omitempty"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status string `json:"status"`
}
