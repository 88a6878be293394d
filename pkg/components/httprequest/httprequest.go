// Package httprequest provides the built-in HTTP request component.
package httprequest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/runner"
)

const defaultTimeoutSeconds = 30

// Definition returns the HTTP request component registration.
func Definition() *models.Component {
	return &models.Component{
		ID:          "http_request",
		Name:        "HTTP Request",
		Description: "Performs an HTTP request and returns status, headers and parsed body.",
		Category:    models.CategoryAction,
		Runner:      models.InlineRunner(),
		RetryPolicy: &models.RetryPolicy{
			MaxAttempts:            3,
			InitialIntervalSeconds: 1,
			MaximumIntervalSeconds: 30,
			BackoffCoefficient:     2,
		},
		InputSchema: &models.SchemaDefinition{
			Title: "HTTP request input",
			Fields: map[string]*models.Field{
				"url": {
					Type:        models.FieldTypeString,
					Description: "Absolute URL to call.",
					Required:    true,
				},
				"method": {
					Type:    models.FieldTypeString,
					Default: http.MethodGet,
					Enum: []any{
						http.MethodGet, http.MethodPost, http.MethodPut,
						http.MethodPatch, http.MethodDelete, http.MethodHead,
					},
				},
				"headers": {
					Type:        models.FieldTypeObject,
					Description: "Request headers.",
				},
				"body": {
					Type:        models.FieldTypeAny,
					Description: "Request body. Objects are sent as JSON.",
				},
				"auth_token": {
					Type:        models.FieldTypeString,
					Description: "Bearer token attached to the request.",
					Secret:      true,
				},
				"timeout_seconds": {
					Type:    models.FieldTypeInteger,
					Default: defaultTimeoutSeconds,
				},
			},
		},
		OutputSchema: &models.SchemaDefinition{
			Title: "HTTP request output",
			Fields: map[string]*models.Field{
				"status_code": {Type: models.FieldTypeInteger},
				"headers":     {Type: models.FieldTypeObject},
				"body":        {Type: models.FieldTypeAny},
			},
		},
		Execute: execute,
	}
}

func execute(ctx context.Context, params map[string]any, execCtx *models.ExecutionContext) (map[string]any, error) {
	url, _ := params["url"].(string)

	method, _ := params["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	timeout := defaultTimeoutSeconds * time.Second
	if seconds, ok := params["timeout_seconds"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, buildBody(params["body"]))
	if err != nil {
		return nil, &runner.ServiceError{Endpoint: url, Message: "building request", Err: err}
	}

	if headers, ok := params["headers"].(map[string]any); ok {
		for name, value := range headers {
			if text, ok := value.(string); ok {
				request.Header.Set(name, text)
			}
		}
	}

	if _, isObject := params["body"].(map[string]any); isObject && request.Header.Get("Content-Type") == "" {
		request.Header.Set("Content-Type", "application/json")
	}

	if token, ok := params["auth_token"].(string); ok && token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	client := http.DefaultClient
	if execCtx.Services != nil && execCtx.Services.HTTP != nil {
		client = execCtx.Services.HTTP
	}

	execCtx.Logger.InfoContext(ctx, "Executing HTTP request",
		"component", "http_request", "method", method, "url", url)

	response, err := client.Do(request)
	if err != nil {
		return nil, &runner.ServiceError{Endpoint: url, Message: "request failed", Err: err}
	}

	defer func() {
		_ = response.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(response.Body, 16<<20))
	if err != nil {
		return nil, &runner.ServiceError{Endpoint: url, Message: "reading response", Err: err}
	}

	if response.StatusCode >= 500 {
		return nil, &runner.ServiceError{
			Endpoint:   url,
			StatusCode: response.StatusCode,
			Message:    fmt.Sprintf("server error: %s", firstLine(payload)),
		}
	}

	headers := make(map[string]any, len(response.Header))
	for name := range response.Header {
		headers[name] = response.Header.Get(name)
	}

	return map[string]any{
		"status_code": response.StatusCode,
		"headers":     headers,
		"body":        parseBody(payload, response.Header.Get("Content-Type")),
	}, nil
}

func buildBody(body any) io.Reader {
	switch typed := body.(type) {
	case nil:
		return nil
	case string:
		if typed == "" {
			return nil
		}

		return strings.NewReader(typed)
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return nil
		}

		return strings.NewReader(string(encoded))
	}
}

func parseBody(payload []byte, contentType string) any {
	if strings.Contains(contentType, "application/json") {
		var decoded any
		if err := json.Unmarshal(payload, &decoded); err == nil {
			return decoded
		}
	}

	return string(payload)
}

func firstLine(payload []byte) string {
	text := strings.TrimSpace(string(payload))
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}

	if len(text) > 256 {
		text = text[:256]
	}

	return text
}
