// Package preview gates the live browser session preview.
//
// Only the web-browsing agent may hold the preview slot. Offers are applied
// after a short delay so the panel currently on screen can leave first; any
// other agent's update clears the slot immediately, and Clear also cancels an
// offer that has not fired yet.
package preview
