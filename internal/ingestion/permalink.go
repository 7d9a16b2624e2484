package ingestion

import (
	"fmt"
	"strings"
)

// permalink builds a stable message URL, including the topic segment when
// the message belongs to one.
func permalink(chatName string, topicID, messageID int) string {
	bare := strings.TrimPrefix(chatName, "@")
	if topicID > 0 {
		return fmt.Sprintf("https://t.me/%s/%d/%d", bare, topicID, messageID)
	}
	return fmt.Sprintf("https://t.me/%s/%d", bare, messageID)
}
