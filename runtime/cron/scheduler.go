// Package cron schedules recurring agent runs with cron expressions.
package cron

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	robcron "github.com/robfig/cron/v3"

	"github.com/stratumhq/agentpipe/agent"
)

// Scheduler manages recurring agent jobs. Job state is tracked per
// name; runs record a bounded history.
type Scheduler struct {
	mu      sync.RWMutex
	cron    *robcron.Cron
	jobs    map[string]*managedJob
	runFunc RunFunc
	started bool
	maxRuns int
}

type managedJob struct {
	Job
	entryID robcron.EntryID
	runs    []JobRun
}

// New creates a Scheduler that invokes runFunc on every trigger.
func New(runFunc RunFunc) *Scheduler {
	return &Scheduler{
		cron:    robcron.New(),
		jobs:    make(map[string]*managedJob),
		runFunc: runFunc,
		maxRuns: 100,
	}
}

// NewForClient creates a Scheduler whose jobs resolve and execute
// agents through the client.
func NewForClient(client *agent.Client) *Scheduler {
	return New(AgentRunFunc(client))
}

// AgentRunFunc adapts a client into the scheduler's run function.
func AgentRunFunc(client *agent.Client) RunFunc {
	return func(cfg JobConfig) (string, error) {
		req := client.Agent(cfg.AgentKey).WithInput(cfg.Input)
		if len(cfg.Variables) > 0 {
			req = req.WithVariables(cfg.Variables)
		}
		if cfg.Provider != "" {
			req = req.WithProvider(cfg.Provider)
		}
		if cfg.Model != "" {
			req = req.WithModel(cfg.Model)
		}
		resp, err := req.Execute(context.Background())
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	}
}

// Add registers a job. Duplicate names and invalid cron expressions
// error.
func (s *Scheduler) Add(name, cronExpr string, cfg JobConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if cfg.AgentKey == "" {
		return fmt.Errorf("job %q: agent key is required", name)
	}
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already exists", name)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		_, _ = s.runAndRecord(name, "schedule", true)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	mj := &managedJob{
		Job: Job{
			Name:     name,
			CronExpr: cronExpr,
			Config:   cfg,
			Enabled:  true,
		},
		entryID: entryID,
	}
	if entry := s.cron.Entry(entryID); !entry.Next.IsZero() {
		mj.NextRun = entry.Next
	}

	s.jobs[name] = mj
	return nil
}

// Remove deletes a job by name.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mj, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("job %q not found", name)
	}
	s.cron.Remove(mj.entryID)
	delete(s.jobs, name)
	return nil
}

// List returns all jobs sorted by name.
func (s *Scheduler) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.jobs))
	for _, mj := range s.jobs {
		j := mj.Job
		if entry := s.cron.Entry(mj.entryID); !entry.Next.IsZero() {
			j.NextRun = entry.Next
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// Get returns one job by name.
func (s *Scheduler) Get(name string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mj, ok := s.jobs[name]
	if !ok {
		return Job{}, false
	}
	j := mj.Job
	if entry := s.cron.Entry(mj.entryID); !entry.Next.IsZero() {
		j.NextRun = entry.Next
	}
	return j, true
}

// SetEnabled toggles a job without removing it. Disabled jobs skip
// scheduled triggers but still run on manual Trigger.
func (s *Scheduler) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mj, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("job %q not found", name)
	}
	mj.Enabled = enabled
	return nil
}

// Trigger executes a job immediately, regardless of its schedule.
func (s *Scheduler) Trigger(name string) (string, error) {
	return s.runAndRecord(name, "manual", false)
}

// History returns recent runs for a job, newest first.
func (s *Scheduler) History(name string, limit int) ([]JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mj, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("job %q not found", name)
	}
	if limit <= 0 || limit > len(mj.runs) {
		limit = len(mj.runs)
	}
	out := make([]JobRun, 0, limit)
	for i := len(mj.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, mj.runs[i])
	}
	return out, nil
}

func (s *Scheduler) runAndRecord(name, trigger string, skipIfDisabled bool) (string, error) {
	s.mu.RLock()
	mj, ok := s.jobs[name]
	if !ok {
		s.mu.RUnlock()
		return "", fmt.Errorf("job %q not found", name)
	}
	if skipIfDisabled && !mj.Enabled {
		s.mu.RUnlock()
		return "", nil
	}
	cfg := mj.Config
	s.mu.RUnlock()

	started := time.Now()
	output, err := s.runFunc(cfg)
	finished := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	mj2, ok := s.jobs[name]
	if !ok {
		return output, err
	}
	mj2.LastRun = finished
	mj2.RunCount++
	run := JobRun{
		At:         finished,
		DurationMS: finished.Sub(started).Milliseconds(),
		Trigger:    trigger,
	}
	if err != nil {
		mj2.LastErr = err.Error()
		run.Status = "failed"
		run.Error = err.Error()
		log.Printf("[cron] job %q failed (%s): %v", name, trigger, err)
	} else {
		mj2.LastErr = ""
		run.Status = "completed"
		run.Output = truncate(output, 2000)
	}
	mj2.runs = append(mj2.runs, run)
	if s.maxRuns > 0 && len(mj2.runs) > s.maxRuns {
		mj2.runs = mj2.runs[len(mj2.runs)-s.maxRuns:]
	}
	if entry := s.cron.Entry(mj2.entryID); !entry.Next.IsZero() {
		mj2.NextRun = entry.Next
	}
	return output, err
}

// Start begins scheduling. Non-blocking.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop halts scheduling; running jobs finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.cron.Stop()
		s.started = false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
