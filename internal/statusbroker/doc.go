// Package statusbroker fans a workflow's ordered Event stream out to
// subscribers: late subscribers first replay a backlog ring buffer, then
// receive live events in the same order. Grounded on the teacher's
// subscriber-channel fan-out in orchestrator.go (stateChangeSubscribers,
// instanceEvents): bounded buffered channels with a non-blocking
// select/default send. Overflow here is explicit rather than silently
// logged: the slowest subscriber is dropped and sent a terminal
// SubscriberLagged event (its oldest queued event is discarded to make
// room) before its channel is closed.
package statusbroker
