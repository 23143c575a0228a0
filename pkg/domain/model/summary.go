package model

// FailureSummary represents the result of LLM-based failure analysis for
// a finished run
type FailureSummary struct {
	Headline string         `json:"headline"`
	Causes   []FailureCause `json:"causes"`
}

// FailureCause describes one suspected cause of a job failure
type FailureCause struct {
	Job        string `json:"job"`
	Step       string `json:"step"`
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion,omitempty"`
}
