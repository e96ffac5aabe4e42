// Package event decodes the agent updates the cortex_on backend streams over
// its WebSocket.
//
// Each text frame is one JSON object describing the latest known state of one
// agent invocation:
//
//	{"agent_name": "Coder Agent", "instructions": "...", "steps": [...],
//	 "output": "...", "status_code": 200, "live_url": "", "record_id": "a1"}
//
// Frames are always updates to the latest system turn. Decode tolerates
// slightly broken JSON by running it through jsonrepair once.
package event
