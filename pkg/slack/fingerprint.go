package slack

import (
	"regexp"
	"strings"

	goslack "github.com/slack-go/slack"
)

// fingerprintPattern matches TaskFingerprint(taskID) as a whole token in
// any case and spacing, so "task ab" never matches a message for "task abc".
func fingerprintPattern(taskID string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[^\w-])task\s+` + regexp.QuoteMeta(taskID) + `($|[^\w-])`)
}

// messageText is every human-readable text of a message: the fallback
// text plus the text of its section blocks.
func messageText(msg goslack.Message) string {
	parts := []string{msg.Text}
	for _, b := range msg.Blocks.BlockSet {
		if s, ok := b.(*goslack.SectionBlock); ok && s.Text != nil {
			parts = append(parts, s.Text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// threadRoot returns the timestamp of the first top-level message that
// carries the task's fingerprint, or "" if none does. Replies are skipped
// since threading must target the parent.
func threadRoot(messages []goslack.Message, taskID string) string {
	re := fingerprintPattern(taskID)
	for _, msg := range messages {
		if msg.ThreadTimestamp != "" && msg.ThreadTimestamp != msg.Timestamp {
			continue
		}
		if re.MatchString(messageText(msg)) {
			return msg.Timestamp
		}
	}
	return ""
}
