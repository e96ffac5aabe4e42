// Package conversation holds the chat view model and the reconciler that
// keeps it in step with the backend's event stream.
//
// # Model
//
// A Conversation is an ordered list of Turns. A user turn is a submitted
// prompt and never changes. A system turn is the backend's evolving answer:
// an insertion-ordered mapping from record key to AgentRecord, where the key
// is the invocation's record_id. Display order is first-arrival order and is
// preserved across updates.
//
// # Reconciliation
//
// Reconciler.Apply folds one event into the latest system turn:
//
//  1. mark the turn loading
//  2. update the record with the same identity in place, or append
//  3. trim web surfer steps to the plan step plus the current steps
//  4. offer the live URL (web surfer only) or clear it (anyone else)
//  5. publish final outputs to the registry; an orchestrator result ends
//     the turn
//  6. a Human Input event without output asks the user for input
//  7. write back only when the merged record actually changed
//
// The reconciler is not safe for concurrent use; the session serializes
// frames in socket delivery order.
//
// # Change notifications
//
// Broadcaster fans out Change values so renderers know when to take a new
// snapshot:
//
//	ch, _ := b.Subscribe(ctx, conv.ID)
//	for change := range ch {
//		render(session.Snapshot())
//	}
package conversation
