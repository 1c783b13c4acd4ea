// Package privilege reports whether the agent process is running with
// elevated privileges, so callers can decide when they must reach the
// interactive user's session through internal/sessionbroker instead of
// acting directly.
package privilege
