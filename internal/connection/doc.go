// Package connection manages the websocket between a chat view and the agent
// backend.
//
// A Manager holds at most one live socket. Run dials with a bounded number of
// attempts at a fixed interval, then pumps every text frame to its Handler in
// delivery order. When the socket drops, the handler is told so it can stop
// the loading indicator, and a fresh round of attempts begins.
//
// Prompts are written as plain text frames. Every send carries a key, and a
// key is written at most once per socket, so a prompt composed before the
// socket opened and re-sent from the open hook is not duplicated.
package connection
