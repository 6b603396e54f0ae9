package api

// QueryRequest is the HTTP request body for POST /api/v1/analyses/:task_id/query.
type QueryRequest struct {
	Question string `json:"question"`
}
