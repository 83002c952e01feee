package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stratumhq/agentpipe/types"
	"github.com/stratumhq/agentpipe/usage"
)

const defaultMaxSteps = 6

// GenerateWithTools drives the multi-step tool-calling loop over a
// provider's single round-trip Generate. Each round that returns tool
// calls has its calls executed sequentially through their handles, the
// results appended to the conversation, and the exchange recorded as a
// step. The loop ends when the model stops calling tools or MaxSteps
// rounds have run.
func GenerateWithTools(ctx context.Context, p Provider, req types.Request) (types.Response, error) {
	if len(req.Tools) == 0 {
		return p.Generate(ctx, req)
	}

	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}

	handles := make(map[string]types.ToolHandle, len(req.Tools))
	for _, h := range req.Tools {
		handles[h.Definition.Name] = h
	}

	messages := req.Messages
	if len(messages) == 0 {
		messages = []types.Message{{Role: types.RoleUser, Content: req.Prompt, Attachments: req.Attachments}}
	}

	var (
		steps     []types.Step
		rawUsages []any
		last      types.Response
	)
	round := req
	round.Prompt = ""
	round.Attachments = nil

	for step := 0; step < maxSteps; step++ {
		round.Messages = messages
		resp, err := p.Generate(ctx, round)
		if err != nil {
			return types.Response{}, err
		}
		last = resp
		if resp.Usage != nil {
			rawUsages = append(rawUsages, resp.Usage)
		}

		calls := resp.Message.ToolCalls
		if len(calls) == 0 {
			break
		}

		assistant := resp.Message
		assistant.Role = types.RoleAssistant
		messages = append(messages, assistant)

		results := make([]types.ToolResult, len(calls))
		for i, call := range calls {
			results[i] = runToolCall(ctx, handles, call)
			messages = append(messages, types.Message{
				Role:       types.RoleTool,
				Name:       call.Name,
				ToolCallID: call.ID,
				Content:    results[i].Content,
			})
		}
		steps = append(steps, types.Step{Calls: calls, Results: results})
	}

	last.Steps = steps
	last.Usage = usage.Merge(rawUsages)
	if last.FinishReason == types.FinishUnknown && len(last.Message.ToolCalls) > 0 {
		last.FinishReason = types.FinishToolCalls
	}
	return last, nil
}

// Tool failures are reported back to the model rather than aborting
// the run; the model decides how to proceed.
func runToolCall(ctx context.Context, handles map[string]types.ToolHandle, call types.ToolCall) types.ToolResult {
	handle, ok := handles[call.Name]
	if !ok || handle.Run == nil {
		return types.ToolResult{Content: fmt.Sprintf(`{"error":"tool %q not found"}`, call.Name), IsError: true}
	}
	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	result, err := handle.Run(ctx, args)
	if err != nil {
		encoded, _ := json.Marshal(map[string]any{"error": err.Error()})
		return types.ToolResult{Content: string(encoded), IsError: true}
	}
	return result
}
