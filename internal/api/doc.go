// Package api is the client for the backend's REST endpoints: the secret
// vault, the MCP server registry and the model provider preference.
//
// Responses wrapped in the backend's {"status": n, "message": ...} envelope
// are unwrapped with gjson; anything else is returned as parsed. A non-2xx
// status, or an envelope status of 400 or more, becomes an *Error carrying
// the backend's message. Requests are validated before sending and failures
// are never retried.
package api
