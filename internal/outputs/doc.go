// Package outputs keeps the agent results promoted to the detail panel and
// the selection state used to browse them.
package outputs
