// Package events carries work item transitions from the task runner to
// whoever renders or records them.
//
// The runner emits an ItemEvent on every status change. Handlers registered
// with an InMemoryEventEmitter receive them in order; terminal events carry
// the outcome a chat front end would deliver (category, record and
// transcript, or the failure reason). WebhookHandler forwards terminal
// events over HTTP.
package events
