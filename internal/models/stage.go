package models

// StageResult is the output of one inference call.
type StageResult struct {
	Ordinal int    `json:"ordinal"` // 1-based
	Text    string `json:"text"`
	Model   string `json:"model"`
}

// AssembledDocument is the complete HTML page built from every stage result.
type AssembledDocument struct {
	HTML    string        `json:"html"`
	Results []StageResult `json:"results"`
	Model   string        `json:"model"`
}
