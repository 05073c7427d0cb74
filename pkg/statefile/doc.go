// Package statefile reads and writes the control plane's JSON state files
// (feature-flags.json, deploy-state.json).
//
// Write replaces a file atomically through a temporary file and rename, so a
// crash mid-write never leaves a truncated document behind. Read treats a
// missing or empty file as "not found" and reports undecodable content as
// ErrCorrupt; callers fall back to an empty default in both cases.
package statefile
