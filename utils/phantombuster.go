package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"liquidreach/engine"
)

const phantombusterLaunchURL = "https://api.phantombuster.com/api/v2/agents/launch"

// PhantombusterClient launches remote automation agents. The launch call is
// synchronous and returns a container id; the agent reports completion
// later through our automation webhook.
type PhantombusterClient struct {
	client  *fasthttp.Client
	timeout time.Duration
}

func NewPhantombusterClient(timeout time.Duration) *PhantombusterClient {
	return &PhantombusterClient{
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		timeout: timeout,
	}
}

func (c *PhantombusterClient) Launch(ctx context.Context, launch engine.AutomationLaunch) (string, error) {
	payload := map[string]interface{}{
		"id": launch.AgentID,
		"argument": map[string]interface{}{
			"profileUrl": launch.ProfileURL,
			"message":    launch.Message,
			"webhookUrl": launch.WebhookURL,
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding launch payload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(phantombusterLaunchURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-Phantombuster-Key", launch.APIKey)
	req.SetBody(raw)

	if err := c.client.DoTimeout(req, resp, remainingTimeout(ctx, c.timeout)); err != nil {
		return "", fmt.Errorf("phantombuster request: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("phantombuster returned status %d: %s", resp.StatusCode(), resp.Body())
	}

	var out struct {
		ContainerID string `json:"containerId"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decoding phantombuster response: %w", err)
	}
	if out.ContainerID == "" {
		return "", fmt.Errorf("phantombuster response missing containerId")
	}
	return out.ContainerID, nil
}
