package persistence

import (
	"time"
)

// Run statuses
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
)

// RunRecord is one row of the runs table
type RunRecord struct {
	ID         string
	Task       string
	Status     string
	Outcome    string
	AnswerJSON string
	Error      string
	Steps      int
	MaxSteps   int
	Plan       string
	StartedAt  time.Time
	FinishedAt time.Time
}

// ActionRow is one row of the actions table
type ActionRow struct {
	RunID       string
	Step        int
	Name        string
	PayloadJSON string
	Result      string
	IsError     bool
	Reflection  string
	CreatedAt   time.Time
}
