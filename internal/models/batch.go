package models

import "time"

// BatchItem is the outcome of one task within a batch run.
type BatchItem struct {
	TaskID   string `json:"task_id,omitempty"`
	Resource string `json:"resource"`
	Status   Status `json:"status"`
	Chunks   int    `json:"chunks"`
	File     string `json:"file,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BatchManifest summarizes a batch run and is written next to its reports.
type BatchManifest struct {
	Format          string      `json:"format"`
	OutputDirectory string      `json:"output_directory"`
	TotalTasks      int         `json:"total_tasks"`
	Completed       int         `json:"completed"`
	Failed          int         `json:"failed"`
	StartedAt       time.Time   `json:"started_at"`
	FinishedAt      time.Time   `json:"finished_at"`
	Items           []BatchItem `json:"items"`
}
