// Package conversation derives the identity of a two-party message thread.
package conversation

import "strings"

// Separator joins the two participant ids of a key. User ids must not contain it.
const Separator = "_"

// Key returns the conversation key shared by users a and b.
// Key(a, b) == Key(b, a) for all inputs.
func Key(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + Separator + b
}

// Participants splits a key back into its two user ids.
func Participants(key string) (string, string, bool) {
	a, b, ok := strings.Cut(key, Separator)
	if !ok || a == "" || b == "" || strings.Contains(b, Separator) {
		return "", "", false
	}
	return a, b, true
}

// Other returns the participant of key that is not userID.
func Other(key, userID string) (string, bool) {
	a, b, ok := Participants(key)
	if !ok {
		return "", false
	}
	switch userID {
	case a:
		return b, true
	case b:
		return a, true
	default:
		return "", false
	}
}

// Contains reports whether userID takes part in the conversation identified by key.
func Contains(key, userID string) bool {
	_, ok := Other(key, userID)
	return ok
}
