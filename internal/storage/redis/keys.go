package redis

import (
	"fmt"

	"github.com/mcoot/gamelobby/internal/model"
)

// Key prefix for all lobby data
const keyPrefix = "lobby"

// roomKey returns the Redis key for a Room aggregate
func roomKey(code model.RoomCode) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, code)
}

// accountKey returns the Redis key for an Account
func accountKey(id model.UserID) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, id)
}

// usernameIndexKey returns the Redis key for the username -> user_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}
