package scope

import "strings"

// DM channel IDs start with "D" on Slack-style transports.
const dmPrefix = "D"

// DirectThread is the thread slot used in session keys when the
// conversation has no thread.
const DirectThread = "direct"

// Resolve derives the stable scope key for a conversation context.
//
// A thread is a shared context for every participant, so thread keys never
// incorporate the user. A bare DM channel is per-user, so DM keys do.
func Resolve(channelID, threadID, userID string) string {
	channelID = strings.TrimSpace(channelID)
	threadID = strings.TrimSpace(threadID)
	userID = strings.TrimSpace(userID)

	if threadID != "" {
		return channelID + "-" + threadID
	}
	if strings.HasPrefix(channelID, dmPrefix) && userID != "" {
		return channelID + "-" + userID
	}
	return channelID
}

// Key builds the session key triple (userId, channelId, threadId|"direct").
func Key(userID, channelID, threadID string) string {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		threadID = DirectThread
	}
	return userID + ":" + channelID + ":" + threadID
}

// IsDM reports whether the channel is a direct-message channel.
func IsDM(channelID string) bool {
	return strings.HasPrefix(channelID, dmPrefix)
}
