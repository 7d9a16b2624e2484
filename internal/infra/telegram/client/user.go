package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/gotd/td/tg"
)

// ResolveUserID resolves a bare username to its numeric Telegram user id.
// Returns ok=false (not an error) when the username exists but does not
// resolve to a user (e.g. it is a channel or group).
func (t *Tenant) ResolveUserID(ctx context.Context, username string) (id int64, ok bool, err error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return 0, false, fmt.Errorf("client: empty username")
	}

	resolved, err := t.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		return 0, false, fmt.Errorf("resolve username %q: %w", username, err)
	}

	for _, u := range resolved.Users {
		if user, isUser := u.(*tg.User); isUser {
			return user.ID, true, nil
		}
	}
	return 0, false, nil
}
