package redis

import (
	"fmt"

	"github.com/mcoot/bananaclick/internal/model"
)

// Key prefix for all account data
const keyPrefix = "bclick"

// accountKey returns the Redis key for an account hash
func accountKey(id model.AccountID) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, id)
}

// emailIndexKey returns the Redis key for the email -> account_id index
func emailIndexKey(email string) string {
	return fmt.Sprintf("%s:idx:email:%s", keyPrefix, email)
}

// usernameIndexKey returns the Redis key for the username -> account_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// accountSetKey returns the Redis key for the SET of all account ids
func accountSetKey() string {
	return fmt.Sprintf("%s:accounts", keyPrefix)
}

// seqKey returns the Redis key for the insertion sequence counter
func seqKey() string {
	return fmt.Sprintf("%s:seq", keyPrefix)
}
