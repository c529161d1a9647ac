// Package shell quotes command words for embedding in POSIX shell command
// lines, such as the picker's key bindings.
package shell

import (
	"regexp"
	"strings"
)

// safeWord matches words that need no quoting. '*' and '?' are left out to
// avoid globbing.
var safeWord = regexp.MustCompile(`^[a-zA-Z0-9_~\-./=:,@%+]+$`)

// Quote returns word quoted for a shell. first marks the command word, where
// an embedded '=' would be read as an assignment.
func Quote(word string, first bool) string {
	if !needsQuoting(word, first) {
		return word
	}
	if !strings.Contains(word, "'") {
		return "'" + word + "'"
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range word {
		switch r {
		case '\\', '"', '$', '`':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// Words quotes each word of a command.
func Words(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = Quote(w, i == 0)
	}
	return out
}

// Join quotes words and joins them into one command line.
func Join(words []string) string {
	return strings.Join(Words(words), " ")
}

func needsQuoting(word string, first bool) bool {
	if word == "" || !safeWord.MatchString(word) {
		return true
	}
	return (first && strings.Contains(word[1:], "=")) || word[0] == '~'
}
