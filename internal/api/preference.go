// ABOUTME: Model provider preference used by the backend's agents
// ABOUTME: Set via the legacy GET endpoint, read from the v1 preference endpoint

package api

import (
	"context"
	"net/http"
	"net/url"
)

// Known model providers.
const (
	ModelAnthropic = "Anthropic"
	ModelOpenAI    = "OpenAI"
)

// SetModelPreference selects the model provider for subsequent runs.
func (c *Client) SetModelPreference(ctx context.Context, model string) error {
	if err := c.checkVar("model", model, "required,oneof=Anthropic OpenAI"); err != nil {
		return err
	}

	_, err := c.do(ctx, "model.set", http.MethodGet, "/set_model_preference", url.Values{"model": {model}}, nil)
	return err
}

// ModelPreference returns the provider the backend currently uses.
func (c *Client) ModelPreference(ctx context.Context) (string, error) {
	msg, err := c.do(ctx, "model.get", http.MethodGet, "/api/v1/model/preference", nil, nil)
	if err != nil {
		return "", err
	}
	if pref := msg.Get("model_preference"); pref.Exists() {
		return pref.String(), nil
	}
	return ModelAnthropic, nil
}
