/*
Package events provides an in-process publish/subscribe broker.

The broker decouples the notification webhook from the trigger loop: the
HTTP handler publishes a notification event and returns immediately, while
the trigger goroutine consumes events and runs reconciliation at its own
pace. Subscribers receive events on buffered channels; a subscriber that
falls behind misses events rather than blocking the broker, which is
acceptable because every notification is only a hint — the periodic tick
guarantees eventual coverage of all groups.
*/
package events
