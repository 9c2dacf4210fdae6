package providers

import (
	"strings"
)

// ExtractContent pulls the primary text or URL out of a decoded provider
// payload. It tolerates the shapes seen across chat and image APIs.
func ExtractContent(payload interface{}) (string, bool) {
	switch v := payload.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case []interface{}:
		for _, item := range v {
			if content, ok := ExtractContent(item); ok {
				return content, true
			}
		}
		return "", false
	case map[string]interface{}:
		// choices[0].message.content
		if choices, ok := v["choices"].([]interface{}); ok && len(choices) > 0 {
			if choice, ok := choices[0].(map[string]interface{}); ok {
				if message, ok := choice["message"].(map[string]interface{}); ok {
					if content, ok := ExtractContent(message["content"]); ok {
						return content, true
					}
				}
				if content, ok := ExtractContent(choice["text"]); ok {
					return content, true
				}
			}
		}
		for _, key := range []string{"url", "content", "text", "output"} {
			if content, ok := ExtractContent(v[key]); ok {
				return content, true
			}
		}
		// data[0].url or data[0].b64_json
		if data, ok := v["data"].([]interface{}); ok && len(data) > 0 {
			if item, ok := data[0].(map[string]interface{}); ok {
				for _, key := range []string{"url", "b64_json"} {
					if s, ok := item[key].(string); ok && s != "" {
						return s, true
					}
				}
			}
		}
		return "", false
	default:
		return "", false
	}
}
