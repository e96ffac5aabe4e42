// ABOUTME: Secret vault operations: list, get, create and delete secrets in a namespace
// ABOUTME: Namespaces travel as a query parameter except on create, where they are in the body

package api

import (
	"context"
	"net/http"
	"net/url"
	"sort"

	"github.com/tidwall/gjson"
)

// CreateSecretsRequest is the body of POST /vault/secrets/create.
type CreateSecretsRequest struct {
	Namespace string            `json:"namespace" validate:"required"`
	Secrets   map[string]string `json:"secrets" validate:"required,min=1,dive,keys,required,endkeys,required"`
}

// ListSecrets returns the secret keys stored in namespace, sorted.
func (c *Client) ListSecrets(ctx context.Context, namespace string) ([]string, error) {
	if err := c.checkVar("namespace", namespace, "required"); err != nil {
		return nil, err
	}

	msg, err := c.do(ctx, "vault.list", http.MethodGet, "/vault/secrets", url.Values{"namespace": {namespace}}, nil)
	if err != nil {
		return nil, err
	}

	// The vault answers with either a list of keys or a key/value object.
	var keys []string
	switch {
	case msg.IsArray():
		for _, k := range msg.Array() {
			keys = append(keys, k.String())
		}
	case msg.IsObject():
		msg.ForEach(func(k, _ gjson.Result) bool {
			keys = append(keys, k.String())
			return true
		})
	}
	sort.Strings(keys)
	return keys, nil
}

// GetSecret returns the value stored under key. Structured values are
// returned as raw JSON.
func (c *Client) GetSecret(ctx context.Context, namespace, key string) (string, error) {
	if err := c.checkVar("namespace", namespace, "required"); err != nil {
		return "", err
	}
	if err := c.checkVar("key", key, "required"); err != nil {
		return "", err
	}

	msg, err := c.do(ctx, "vault.get", http.MethodGet, "/vault/secrets/"+url.PathEscape(key), url.Values{"namespace": {namespace}}, nil)
	if err != nil {
		return "", err
	}
	if msg.IsObject() || msg.IsArray() {
		return msg.Raw, nil
	}
	return msg.String(), nil
}

// CreateSecrets stores every key/value pair in namespace, overwriting
// existing keys. Returns the per-key result reported by the vault.
func (c *Client) CreateSecrets(ctx context.Context, namespace string, secrets map[string]string) (map[string]string, error) {
	req := CreateSecretsRequest{Namespace: namespace, Secrets: secrets}
	if err := c.check(req); err != nil {
		return nil, err
	}

	msg, err := c.do(ctx, "vault.create", http.MethodPost, "/vault/secrets/create", nil, req)
	if err != nil {
		return nil, err
	}

	details := make(map[string]string, len(secrets))
	msg.Get("details").ForEach(func(k, v gjson.Result) bool {
		details[k.String()] = v.String()
		return true
	})
	return details, nil
}

// DeleteSecret removes key from namespace.
func (c *Client) DeleteSecret(ctx context.Context, namespace, key string) error {
	if err := c.checkVar("namespace", namespace, "required"); err != nil {
		return err
	}
	if err := c.checkVar("key", key, "required"); err != nil {
		return err
	}

	_, err := c.do(ctx, "vault.delete", http.MethodDelete, "/vault/secrets/"+url.PathEscape(key), url.Values{"namespace": {namespace}}, nil)
	return err
}
