package models

import "time"

type MessageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type SessionResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionID"`
}

// UploadResult reports the outcome for one uploaded file.
type UploadResult struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Chunks   int    `json:"chunks,omitempty"`
	Error    string `json:"error,omitempty"`
}

type UploadResponse struct {
	Message string         `json:"message"`
	Results []UploadResult `json:"results"`
}

// FileInfo describes an ingested file or web page.
type FileInfo struct {
	Name       string     `json:"name"`
	Source     string     `json:"source"`
	SourceType SourceType `json:"source_type"`
	Size       int64      `json:"size,omitempty"`
	Hash       string     `json:"hash,omitempty"`
	Chunks     int        `json:"chunks"`
	UploadedAt time.Time  `json:"uploaded_at"`
}

type FilesResponse struct {
	Files       []FileInfo `json:"files"`
	TotalChunks int        `json:"total_chunks"`
}

type WebSourcesResponse struct {
	Sources []FileInfo `json:"sources"`
}

type IngestURLResponse struct {
	Message string `json:"message"`
	URL     string `json:"url"`
	Chunks  int    `json:"chunks"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Version     string `json:"version"`
	VectorStore string `json:"vector_store"`
	Documents   int    `json:"documents"`
	WebChunks   int    `json:"web_chunks"`
}
