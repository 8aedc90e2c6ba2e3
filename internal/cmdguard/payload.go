// Package cmdguard classifies shell commands proposed by an agent before the
// host runtime executes them.
//
// The classifier is an advisory safety net. Anything it cannot read is
// allowed: a malformed hook payload must never be the reason a session
// stops working.
package cmdguard

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
)

// maxPayloadBytes is the size read in one go. Larger payloads are still
// decoded in full: a command is never allowed because it was cut short.
const maxPayloadBytes = 1 << 20

// Payload is the PreToolUse hook input. The host runtime nests the command
// under tool_input; the flat form is accepted for manual use and tests.
type Payload struct {
	ToolName  string `json:"tool_name,omitempty"`
	ToolInput struct {
		Command string `json:"command"`
	} `json:"tool_input"`
	Command string `json:"command"`
}

// CommandString returns the nested command when present, else the flat one.
func (p Payload) CommandString() string {
	if p.ToolInput.Command != "" {
		return p.ToolInput.Command
	}
	return p.Command
}

// ParsePayload reads a hook payload and extracts the command. ok is false
// when the payload is not JSON, is not an object, or carries no command.
func ParsePayload(r io.Reader) (command string, ok bool) {
	data, err := io.ReadAll(io.LimitReader(r, maxPayloadBytes+1))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return "", false
	}
	var p Payload
	if len(data) > maxPayloadBytes {
		slog.Warn("large hook payload, decoding from stream", "limit", maxPayloadBytes)
		if err := json.NewDecoder(io.MultiReader(bytes.NewReader(data), r)).Decode(&p); err != nil {
			return "", false
		}
	} else if err := json.Unmarshal(data, &p); err != nil {
		return "", false
	}
	command = p.CommandString()
	if strings.TrimSpace(command) == "" {
		return "", false
	}
	return command, true
}
