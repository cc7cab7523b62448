// Package preflight runs environment checks before the daemon starts and for
// the health command: directory permissions and platform reachability.
package preflight
