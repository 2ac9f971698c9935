// Package sessionresolver derives the active conversation id from a
// navigable location. Resolution is a pure function of the location string,
// recomputed on every call and never cached.
package sessionresolver

import (
	"net/url"
	"strings"
)

// NewChatPlaceholder is the path segment that marks a fresh chat. It reads
// exactly like an absent conversation id.
const NewChatPlaceholder = "new"

const conversationQueryParam = "conversation"

// Resolve returns the conversation id addressed by location, or ok=false
// for the new-chat state. Both the path form (/chat/<id>) and the query
// form (?conversation=<id>) are recognized; the path form wins when both
// are present.
func Resolve(location string) (conversationID string, ok bool) {
	parsed, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return "", false
	}

	if id, found := resolveFromPath(parsed.Path); found {
		return id, true
	}

	if id := strings.TrimSpace(parsed.Query().Get(conversationQueryParam)); id != "" && id != NewChatPlaceholder {
		return id, true
	}

	return "", false
}

func resolveFromPath(path string) (string, bool) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] != "chat" {
			continue
		}
		id := strings.TrimSpace(segments[i+1])
		if id == "" || id == NewChatPlaceholder {
			return "", false
		}
		return id, true
	}
	return "", false
}
