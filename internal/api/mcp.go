// ABOUTME: MCP server registry operations on the agent backend
// ABOUTME: List, inspect, enable, disable, add and remove stdio tool servers

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/tidwall/gjson"
)

// MCP server status values.
const (
	ServerEnabled  = "enabled"
	ServerDisabled = "disabled"
)

// MCPServer is one stdio tool server known to the backend.
type MCPServer struct {
	Name        string            `json:"name" validate:"required,excludesall=/?#"`
	Command     string            `json:"command" validate:"required"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty" validate:"omitempty,dive,keys,required,endkeys"`
	Description string            `json:"description,omitempty"`
	Status      string            `json:"status,omitempty" validate:"omitempty,oneof=enabled disabled"`
}

// Enabled reports whether the backend will start this server.
func (s MCPServer) Enabled() bool {
	return s.Status != ServerDisabled
}

type serverToggleRequest struct {
	ServerName string `json:"server_name" validate:"required"`
	Action     string `json:"action" validate:"required,oneof=enable disable"`
}

// ListServers returns every configured server, sorted by name.
func (c *Client) ListServers(ctx context.Context) ([]MCPServer, error) {
	msg, err := c.do(ctx, "mcp.list", http.MethodGet, "/agent/mcp/servers", nil, nil)
	if err != nil {
		return nil, err
	}

	var servers []MCPServer
	var decodeErr error
	add := func(name string, raw gjson.Result) bool {
		s, err := decodeServer(name, raw)
		if err != nil {
			decodeErr = err
			return false
		}
		servers = append(servers, s)
		return true
	}

	// Servers arrive either as a list or as the name-keyed config object.
	switch {
	case msg.IsArray():
		msg.ForEach(func(_, v gjson.Result) bool { return add("", v) })
	case msg.Get("servers").Exists():
		msg.Get("servers").ForEach(func(k, v gjson.Result) bool { return add(k.String(), v) })
	case msg.IsObject():
		msg.ForEach(func(k, v gjson.Result) bool { return add(k.String(), v) })
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })
	return servers, nil
}

// GetServer returns the named server.
func (c *Client) GetServer(ctx context.Context, name string) (MCPServer, error) {
	if err := c.checkVar("name", name, "required"); err != nil {
		return MCPServer{}, err
	}

	msg, err := c.do(ctx, "mcp.get", http.MethodGet, "/agent/mcp/servers/"+url.PathEscape(name), nil, nil)
	if err != nil {
		return MCPServer{}, err
	}
	return decodeServer(name, msg)
}

// SetServerEnabled enables or disables the named server.
func (c *Client) SetServerEnabled(ctx context.Context, name string, enabled bool) error {
	req := serverToggleRequest{ServerName: name, Action: "disable"}
	if enabled {
		req.Action = "enable"
	}
	if err := c.check(req); err != nil {
		return err
	}

	_, err := c.do(ctx, "mcp."+req.Action, http.MethodPost, "/agent/mcp/servers", nil, req)
	return err
}

// AddServer registers a new server.
func (c *Client) AddServer(ctx context.Context, server MCPServer) error {
	if err := c.check(server); err != nil {
		return err
	}

	_, err := c.do(ctx, "mcp.add", http.MethodPost, "/agent/mcp/servers/add", nil, server)
	return err
}

// RemoveServer deletes the named server.
func (c *Client) RemoveServer(ctx context.Context, name string) error {
	if err := c.checkVar("name", name, "required"); err != nil {
		return err
	}

	_, err := c.do(ctx, "mcp.remove", http.MethodDelete, "/agent/mcp/servers/"+url.PathEscape(name), nil, nil)
	return err
}

func decodeServer(name string, raw gjson.Result) (MCPServer, error) {
	var s MCPServer
	if err := json.Unmarshal([]byte(raw.Raw), &s); err != nil {
		return MCPServer{}, fmt.Errorf("decoding server %q: %w", name, err)
	}
	if s.Name == "" {
		s.Name = name
	}
	return s, nil
}
