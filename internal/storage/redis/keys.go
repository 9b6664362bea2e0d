package redis

import (
	"fmt"

	"github.com/mcoot/towers-go/internal/model"
)

// Key prefix for all towers data
const keyPrefix = "towers"

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// registeredPlayerKey returns the Redis key for a RegisteredPlayer
func registeredPlayerKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:registered_player:%s", keyPrefix, playerID)
}

// usernameIndexKey returns the Redis key for the username -> player_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// statsKey returns the Redis key for a player's stats
func statsKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:stats:%s", keyPrefix, id)
}

// tableKey returns the Redis key for a TableInfo
func tableKey(id model.TableID) string {
	return fmt.Sprintf("%s:table:%s", keyPrefix, id)
}

// tablesForRoomIndexKey returns the Redis key for the ZSET of tables in a room, scored by table number
func tablesForRoomIndexKey(roomID model.RoomID) string {
	return fmt.Sprintf("%s:idx:tables_for_room:%s", keyPrefix, roomID)
}

// seatsKey returns the Redis key for the HASH of seat number -> assignment
func seatsKey(tableID model.TableID) string {
	return fmt.Sprintf("%s:seats:%s", keyPrefix, tableID)
}

// chatKey returns the Redis key for the LIST of chat records in a room or table
func chatKey(scope model.ChatScope, scopeID string) string {
	return fmt.Sprintf("%s:chat:%s:%s", keyPrefix, scope, scopeID)
}
