// Package template renders dynamic parameter values against the results
// accumulated during a run.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Data is the root object templates are evaluated against.
type Data struct {
	RunID       string
	Environment string
	Nodes       map[string]map[string]any
	Inputs      map[string]any
}

// NeedsRendering reports whether a string contains template syntax.
func NeedsRendering(input string) bool {
	return strings.Contains(input, "{{")
}

// RenderParams renders every string value in params, recursing into nested
// maps and slices. Non-string values pass through untouched.
func RenderParams(params map[string]any, data Data) (map[string]any, error) {
	rendered, err := renderValue(params, data)
	if err != nil {
		return nil, err
	}

	result, ok := rendered.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("params rendered to %T, expected object", rendered)
	}

	return result, nil
}

func renderValue(value any, data Data) (any, error) {
	switch typed := value.(type) {
	case string:
		if !NeedsRendering(typed) {
			return typed, nil
		}

		return Render(typed, data)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, sub := range typed {
			rendered, err := renderValue(sub, data)
			if err != nil {
				return nil, err
			}

			out[key] = rendered
		}

		return out, nil
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			rendered, err := renderValue(item, data)
			if err != nil {
				return nil, err
			}

			out[i] = rendered
		}

		return out, nil
	default:
		return value, nil
	}
}

// Render evaluates one template string. The rendered text is coerced back to
// JSON, number or boolean when it parses as one, so templates can produce
// structured values, not just strings.
func Render(templateStr string, data Data) (any, error) {
	tmpl, err := template.
		New("param").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}

				num := make([]byte, 1)
				if _, err := rand.Read(num); err != nil {
					return 0
				}

				return int(num[0]) % max
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, map[string]any{
		"run": map[string]any{
			"id":          data.RunID,
			"environment": data.Environment,
		},
		"nodes":  data.Nodes,
		"inputs": data.Inputs,
		"env":    envVars(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any
		if err := json.Unmarshal([]byte(result), &jsonResult); err == nil {
			return jsonResult, nil
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

func envVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	return envMap
}
