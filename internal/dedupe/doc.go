// Package dedupe provides a bounded, time-limited set of keys used to make
// sure a prompt is written to a given connection at most once.
package dedupe
