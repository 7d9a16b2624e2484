package ingestion

import (
	"regexp"
	"strings"

	"github.com/gotd/td/tg"
)

// topicTagPatterns match free-text city/company tags used in chats that
// don't bother with real forum topics, e.g. "МСК - Ozon", "СПБ -> WB",
// "#мск_озон". Group 1 is the city token, group 2 the trailing label.
var topicTagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(МСК|СПБ)\s*[-–>]+\s*([A-Za-zА-Яа-яЁё0-9 ]{2,30})`),
	regexp.MustCompile(`(?i)#(мск|спб)_([a-zа-яё0-9_]{2,30})`),
}

// resolveAuthor reads the sender's username/full name/numeric id out of the
// entities map attached to the update, falling back to nil fields for
// anonymous or channel-posted messages.
func resolveAuthor(e tg.Entities, msg *tg.Message) (username, fullName *string, authorID *int64) {
	peer, ok := msg.GetFromID()
	if !ok {
		return nil, nil, nil
	}
	peerUser, ok := peer.(*tg.PeerUser)
	if !ok {
		return nil, nil, nil
	}

	id := peerUser.UserID
	idCopy := id
	authorID = &idCopy

	user, ok := e.Users[id]
	if !ok {
		return nil, nil, authorID
	}

	if user.Username != "" {
		u := user.Username
		username = &u
	}
	full := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if full != "" {
		fullName = &full
	}
	return username, fullName, authorID
}

// actualTopic returns the forum-topic root message id a message belongs to,
// per MTProto's reply-header convention: the top-level reply id when set,
// else the direct reply id.
func actualTopic(msg *tg.Message) (int, bool) {
	reply, ok := msg.GetReplyTo()
	if !ok {
		return 0, false
	}
	header, ok := reply.(*tg.MessageReplyHeader)
	if !ok {
		return 0, false
	}
	if top, ok := header.GetReplyToTopID(); ok && top != 0 {
		return top, true
	}
	if direct, ok := header.GetReplyToMsgID(); ok && direct != 0 {
		return direct, true
	}
	return 0, false
}

// resolveTopicName looks up a topic's cached title, falling back to a
// best-effort regex guess over the message text when the topic id isn't in
// the forum-topics cache (non-forum chats using text conventions instead).
func resolveTopicName(topicCache map[int]string, topicID int, messageText string) string {
	if topicID != 0 {
		if name, ok := topicCache[topicID]; ok {
			return name
		}
	}
	for _, pat := range topicTagPatterns {
		if m := pat.FindStringSubmatch(messageText); m != nil {
			return strings.TrimSpace(m[1] + " - " + m[2])
		}
	}
	return ""
}
