package agent

import (
	"fmt"
	"strings"

	"github.com/agentichat/agent-gateway/internal/schema"
)

// formatResponse assembles the final content list: completed-result
// blocks in result order, then one merged error block for all
// failures, then a fallback block when nothing completed.
func formatResponse(classification schema.IntentClassification, toolResults []schema.ToolResult, originalQuery string) []schema.Content {
	var completed, failed []schema.ToolResult
	for _, r := range toolResults {
		switch r.Status {
		case schema.StatusCompleted:
			completed = append(completed, r)
		case schema.StatusFailed:
			failed = append(failed, r)
		}
	}

	content := []schema.Content{}
	for _, r := range completed {
		content = append(content, formatResult(r))
	}

	if len(failed) > 0 {
		lines := make([]string, 0, len(failed))
		names := make([]string, 0, len(failed))
		for _, r := range failed {
			lines = append(lines, fmt.Sprintf("Tool '%s' failed: %s", r.ToolName, r.Error))
			names = append(names, r.ToolName)
		}
		content = append(content, schema.Content{
			Type:     schema.ContentError,
			Content:  "Some tools encountered errors:\n" + strings.Join(lines, "\n"),
			Metadata: map[string]any{"failed_tools": names},
		})
	}

	// Zero completed results always yields a fallback block, even when
	// no tool ran at all.
	if len(completed) == 0 {
		content = append(content, fallbackContent(classification.Intent, originalQuery))
	}

	return content
}

// formatResult maps one completed result to a content block by tool
// name; unrecognized tools produce a generic data block.
func formatResult(r schema.ToolResult) schema.Content {
	switch r.ToolName {
	case "text_generation":
		generated, _ := r.Result["generated_text"].(string)
		if generated == "" {
			return dataResult(r)
		}
		return schema.Content{
			Type:    schema.ContentText,
			Content: generated,
			Metadata: map[string]any{
				"tool_used":      r.ToolName,
				"model":          r.Result["model_used"],
				"tokens":         r.Result["tokens_used"],
				"execution_time": r.ExecutionTime,
			},
		}
	case "code_execution":
		output, _ := r.Result["output"].(string)
		return schema.Content{
			Type:    schema.ContentCode,
			Content: output,
			Metadata: map[string]any{
				"tool_used":      r.ToolName,
				"language":       r.Result["language"],
				"execution_time": r.ExecutionTime,
			},
		}
	case "image_generation":
		url, _ := r.Result["image_url"].(string)
		description, _ := r.Result["description"].(string)
		return schema.Content{
			Type:    schema.ContentImage,
			Content: map[string]any{"url": url, "description": description},
			Metadata: map[string]any{
				"tool_used":      r.ToolName,
				"execution_time": r.ExecutionTime,
			},
		}
	default:
		return dataResult(r)
	}
}

func dataResult(r schema.ToolResult) schema.Content {
	result := r.Result
	if result == nil {
		result = map[string]any{}
	}
	return schema.Content{
		Type:    schema.ContentData,
		Content: result,
		Metadata: map[string]any{
			"tool_used":      r.ToolName,
			"execution_time": r.ExecutionTime,
		},
	}
}

// fallbackContent picks the fixed per-intent fallback text,
// interpolating the original query.
func fallbackContent(intent, originalQuery string) schema.Content {
	templates := map[string]string{
		"text_generation":  "I understand you're asking: '%s'. I'd be happy to help, but I'm currently unable to generate a detailed response. Please try again or rephrase your question.",
		"code_generation":  "I see you need help with coding. While I can't execute code right now, I can suggest that you're looking for help with: '%s'. Please try again later.",
		"web_search":       "You're looking for information about: '%s'. I'm currently unable to search the web, but I recommend checking reliable sources for this information.",
		"image_generation": "I understand you want to create an image related to: '%s'. Image generation is currently unavailable, but I can help describe what such an image might look like.",
		"calculation":      "I see you need help with calculations: '%s'. While my calculation tools are unavailable, you might want to use a calculator or math software.",
		"data_analysis":    "You're looking to analyze data related to: '%s'. Data analysis tools are currently unavailable, but I can suggest general approaches to your analysis needs.",
	}

	template, ok := templates[intent]
	if !ok {
		template = "I received your message: '%s'. I'm currently unable to process this request fully, but I'm here to help. Please try again or ask something else."
	}

	return schema.Content{
		Type:     schema.ContentText,
		Content:  fmt.Sprintf(template, originalQuery),
		Metadata: map[string]any{"fallback": true, "original_intent": intent},
	}
}
