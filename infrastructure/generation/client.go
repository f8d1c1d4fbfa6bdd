package generation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client calls an Ollama-compatible generation endpoint. No timeout is set
// on the underlying http.Client; callers bound each call with a context
// deadline, so a cancelled context aborts the in-flight request.
type Client struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewClient creates a generation client
func NewClient(endpoint, model string) *Client {
	return &Client{
		endpoint:   endpoint,
		model:      model,
		httpClient: &http.Client{},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// Responses arrive as a stream of JSON lines; only "response" fragments
// matter and the final line carries done=true.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate implements ports.Generator
func (c *Client) Generate(ctx context.Context, groundedContext string, instructions string) (string, error) {
	prompt := fmt.Sprintf("%s\n\nEvidence:\n%s", instructions, groundedContext)

	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: true})
	if err != nil {
		return "", fmt.Errorf("failed to encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("generation service returned %d: %s", resp.StatusCode, string(raw))
	}

	var sb strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var chunk generateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", fmt.Errorf("failed to decode generation stream: %w", err)
		}
		sb.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		// Context cancellation surfaces here mid-stream.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("generation stream failed: %w", err)
	}

	return strings.TrimSpace(sb.String()), nil
}
