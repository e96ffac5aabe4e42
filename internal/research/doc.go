// Package research turns the Deep Research Agent's structured progress steps
// into bounded UI state.
//
// Every step string is decoded independently. JSON steps carry a "type"
// (plan_created, task_started, task_completed, search_completed,
// content_extracted, findings_discovered, thought); anything that does not
// decode, even after a jsonrepair pass, is kept as raw text, and raw text
// mentioning "working" or "processing" becomes the current action.
//
// A Tracker keeps the task list, sources deduplicated by URL, the last
// MaxFindings findings and the last MaxThoughts distinct thoughts.
package research
