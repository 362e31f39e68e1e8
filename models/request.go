package models

// AskRequest is the body of POST /api/v1/ask.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionID,omitempty"`
}

// SessionRequest is the body of POST /api/v1/new-session.
type SessionRequest struct {
	SessionID string `json:"sessionID,omitempty"`
}

// IngestURLRequest is the body of POST /api/v1/web.
type IngestURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// DeleteWebRequest is the body of DELETE /api/v1/web.
type DeleteWebRequest struct {
	URL string `json:"url" binding:"required"`
}
