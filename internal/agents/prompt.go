package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"finsight/internal/domain/analysis"
	"finsight/internal/skills"
	"finsight/pkg/errors"
)

const systemPrompt = `You are a financial analyst. Use only the data provided in the user message.
Reply with a single JSON object and nothing else:
{
  "summary": string,
  "sentiment": "positive" | "negative" | "neutral",
  "confidence": number between 0 and 1,
  "key_levels": {"support": [number], "resistance": [number]},
  "risks": [string],
  "action_items": [string],
  "tool_requests": [{"tool": string, "args": object}]
}
Use tool_requests only when data you need is missing; available tools: %s.
When you request tools, the other fields may be left empty.`

type promptPayload struct {
	Request   analysis.Request `json:"request"`
	Input     analysis.Input   `json:"data"`
	Warnings  []string         `json:"data_warnings,omitempty"`
	Iteration int              `json:"tool_iteration"`
	Final     bool             `json:"final_answer_required"`
}

// composePrompt renders the system and user messages for one model call
func composePrompt(skill skills.Skill, toolNames []string, req analysis.Request, in analysis.Input, warnings []string, iteration int, final bool) (analysis.Prompt, error) {
	system := fmt.Sprintf(systemPrompt, strings.Join(toolNames, ", "))
	if skill.Instructions != "" {
		system += "\n\n" + skill.Instructions
	}
	if final {
		system += "\nThis is the final round: do not request tools."
	}

	body, err := json.MarshalIndent(promptPayload{
		Request:   req,
		Input:     in,
		Warnings:  warnings,
		Iteration: iteration,
		Final:     final,
	}, "", "  ")
	if err != nil {
		return analysis.Prompt{}, errors.Wrap(err, "marshal prompt payload")
	}
	return analysis.Prompt{System: system, User: string(body)}, nil
}
