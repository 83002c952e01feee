package cron

import "time"

// JobConfig declares which agent a scheduled job runs and with what
// input.
type JobConfig struct {
	AgentKey  string         `json:"agentKey"`
	Input     string         `json:"input"`
	Variables map[string]any `json:"variables,omitempty"`
	Provider  string         `json:"provider,omitempty"`
	Model     string         `json:"model,omitempty"`
}

// Job is a recurring scheduled agent run.
type Job struct {
	Name     string    `json:"name"`
	CronExpr string    `json:"cronExpr"`
	Config   JobConfig `json:"config"`
	Enabled  bool      `json:"enabled"`
	LastRun  time.Time `json:"lastRun,omitempty"`
	NextRun  time.Time `json:"nextRun,omitempty"`
	LastErr  string    `json:"lastError,omitempty"`
	RunCount int       `json:"runCount"`
}

// JobRun is one recorded execution of a job.
type JobRun struct {
	At         time.Time `json:"at"`
	DurationMS int64     `json:"durationMs"`
	Trigger    string    `json:"trigger"`
	Status     string    `json:"status"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// RunFunc executes one job invocation and returns the response text.
type RunFunc func(cfg JobConfig) (string, error)
