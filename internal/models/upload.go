package models

import "time"

// UploadedFile represents a PDF accepted by the upload endpoint and kept on disk
// for the duration of one pipeline run.
type UploadedFile struct {
	ID           string    `json:"id"`
	Path         string    `json:"-"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploadedAt"`
}
