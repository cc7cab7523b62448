// Package notifications delivers operator alerts via ntfy.
//
// The default implementation publishes to the topic configured in config.toml
// and degrades to a no-op when no topic is set. Only the failure paths an
// operator must act on are enumerated: fatal attempts, throttled platforms and
// reaper kills, plus a test event for checking the wiring.
package notifications
