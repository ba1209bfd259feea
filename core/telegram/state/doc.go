// Package state keeps per-conversation sessions for the bot. A Manager
// serializes access per chat and persists sessions as JSON through a Store:
// in memory, in Postgres or in Redis.
package state
