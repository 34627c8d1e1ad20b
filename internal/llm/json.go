package llm

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/ShayCichocki/switchboard/internal/agent"
)

// ExtractObject finds the outermost JSON object in a model response and
// decodes it. A response without a decodable object is transient: the model
// may well comply on the next attempt.
func ExtractObject(response string) (map[string]any, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, agent.Transient(fmt.Errorf("no JSON object in response: %s", truncate(response, 200)))
	}

	raw := response[start : end+1]
	var out map[string]any
	if err := sonic.UnmarshalString(raw, &out); err != nil {
		return nil, agent.Transient(fmt.Errorf("parse JSON: %w (response: %s)", err, truncate(raw, 200)))
	}
	return out, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
