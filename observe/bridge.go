package observe

import "strings"

// Classify maps a pipeline event name onto an event kind and status,
// so handlers can record pipeline traffic without a lookup table per
// event. Names follow the "<subject>.<phase>" convention used by the
// execution pipelines.
func Classify(eventName string) (Kind, Status) {
	kind := KindCustom
	switch {
	case strings.HasPrefix(eventName, "tool."):
		kind = KindTool
	case strings.HasPrefix(eventName, "agent.system_prompt."):
		kind = KindPipeline
	case strings.HasPrefix(eventName, "agent."):
		kind = KindRun
	case strings.HasPrefix(eventName, "provider."):
		kind = KindProvider
	}

	status := StatusCompleted
	switch {
	case strings.Contains(eventName, "before"):
		status = StatusStarted
	case strings.Contains(eventName, "error"), strings.Contains(eventName, "failed"):
		status = StatusFailed
	}
	return kind, status
}

// FromPipelineEvent builds an event for one pipeline dispatch.
func FromPipelineEvent(eventName, runID, agentKey string) Event {
	kind, status := Classify(eventName)
	e := Event{
		Kind:     kind,
		Status:   status,
		Name:     eventName,
		RunID:    runID,
		AgentKey: agentKey,
	}
	e.Normalize()
	return e
}
