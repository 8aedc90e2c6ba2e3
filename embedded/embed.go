// Package embedded carries the hook snippets printed by "rlm hooks init".
package embedded

import "embed"

// Paths of the files in HooksFS.
const (
	// PrePushHook is a POSIX shell pre-push hook that forwards to
	// "rlm hook pre-push" and allows the push when rlm is not installed.
	PrePushHook = "hooks/pre-push"

	// SettingsJSON is the PreToolUse hook block for the agent runtime's
	// settings.json.
	SettingsJSON = "hooks/settings.json"
)

// HooksFS contains every embedded hook file. Read files with fs.ReadFile.
//
//go:embed hooks
var HooksFS embed.FS
