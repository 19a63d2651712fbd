// Package notifications publishes sync and matching events to an ntfy
// topic. Event classes are individually toggleable; without a configured
// topic every notification is a no-op.
package notifications
