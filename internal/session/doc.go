// Package session is the application-state container for one chat view.
//
// A Session owns the conversation, the output registry and its selector, the
// live preview gate and the research trackers. The connection manager feeds
// it socket frames through HandleFrame and HandleDisconnect, and asks it for
// the prompt to send on a fresh connection through PendingPrompt. Renderers
// call Subscribe for change notifications and Snapshot to read state.
//
// All state changes go through the session's mutex, so frames arriving on the
// socket goroutine and preview timers firing on their own goroutines never
// race with user commands.
package session
