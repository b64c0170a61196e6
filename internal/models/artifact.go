package models

import "time"

// GeneratedArtifact describes a converted document persisted under the output directory.
type GeneratedArtifact struct {
	FileName   string    `json:"fileName" msgpack:"file_name"`
	Path       string    `json:"-" msgpack:"-"`
	Size       int64     `json:"size" msgpack:"size"`
	CreatedAt  time.Time `json:"createdAt" msgpack:"created_at"`
	Model      string    `json:"model,omitempty" msgpack:"model"`
	SourceName string    `json:"sourceName,omitempty" msgpack:"source_name"`
}

// RunResult is the payload of the completion event.
type RunResult struct {
	FileName  string `json:"fileName"`
	ModelUsed string `json:"modelUsed"`
	Size      int64  `json:"size"`
}
