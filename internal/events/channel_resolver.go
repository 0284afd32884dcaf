package events

import (
	"strings"

	"github.com/google/uuid"
)

const ChannelPrefixUser = "channel:user:"

// UserChannelPattern matches every per-user channel.
const UserChannelPattern = ChannelPrefixUser + "*"

func UserChannel(userID uuid.UUID) string {
	return ChannelPrefixUser + userID.String()
}

// UserFromChannel extracts the user id from a per-user channel name.
func UserFromChannel(channel string) (uuid.UUID, bool) {
	if !strings.HasPrefix(channel, ChannelPrefixUser) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(channel, ChannelPrefixUser))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
