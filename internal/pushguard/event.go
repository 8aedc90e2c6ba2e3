// Package pushguard implements the pre-push branch protection gate.
//
// Git runs the pre-push hook with one line per updated ref on stdin:
//
//	<local ref> SP <local sha> SP <remote ref> SP <remote sha> LF
//
// The guard blocks the whole push when any ref targets a protected branch and
// the asserted agent identity is not authorized. Git applies the hook exit
// status to every ref in the batch, so there is no partial allow.
package pushguard

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const branchRefPrefix = "refs/heads/"

// PushEvent is one ref update from the pre-push protocol.
type PushEvent struct {
	LocalRef  string `json:"local_ref"`
	LocalSHA  string `json:"local_sha"`
	RemoteRef string `json:"remote_ref"`
	RemoteSHA string `json:"remote_sha,omitempty"`
}

// Branch returns the branch name targeted on the remote, or false when the
// remote ref is not under refs/heads/ (tags, notes, bare SHAs).
func (e PushEvent) Branch() (string, bool) {
	name, ok := strings.CutPrefix(e.RemoteRef, branchRefPrefix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// IsDelete reports whether the event deletes the remote ref. Deletes are
// still subject to protection; this is only used for messages.
func (e PushEvent) IsDelete() bool {
	return e.LocalRef == "(delete)" || isZeroSHA(e.LocalSHA)
}

// isZeroSHA reports an all-zero object id, which git sends for the missing
// side of a create or delete.
func isZeroSHA(sha string) bool {
	return sha != "" && strings.Trim(sha, "0") == ""
}

// ParseEvents reads pre-push lines from r. Lines with fewer than three fields
// are skipped; they are never an error. An empty stream yields no events.
func ParseEvents(r io.Reader) ([]PushEvent, error) {
	var events []PushEvent
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		ev := PushEvent{
			LocalRef:  fields[0],
			LocalSHA:  fields[1],
			RemoteRef: fields[2],
		}
		if len(fields) > 3 {
			ev.RemoteSHA = fields[3]
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("read push events: %w", err)
	}
	return events, nil
}
