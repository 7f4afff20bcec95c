// Package dynamo provides shared DynamoDB constants and utilities for the single-table layout.
package dynamo

import (
	"strings"
	"time"
)

const (
	// Primary key attributes.
	AttrPK = "pk"
	AttrSK = "sk"

	// AttrTTL holds the epoch-seconds expiry for transient rows.
	AttrTTL = "ttl"
)

// Fixed partitions.
const (
	PartitionWorkspace = "WORKSPACE"
	PartitionUsername  = "USERNAME"
	PartitionUser      = "USER"
	PartitionDM        = "DM"
	PartitionSocial    = "SOCIAL"
)

// Key prefixes.
const (
	PrefixWorkspace   = "WORKSPACE#"
	PrefixChannel     = "CHANNEL#"
	PrefixMessage     = "MESSAGE#"
	PrefixTask        = "TASK#"
	PrefixBoardColumn = "BOARD_COLUMN#"
	PrefixBoardCard   = "BOARD_CARD#"
	PrefixFriendUser  = "FRIEND#USER#"
	PrefixFriend      = "FRIEND#"
	PrefixUsername    = "USERNAME#"
	PrefixUser        = "USER#"
	PrefixThread      = "THREAD#"
	PrefixPost        = "POST#"
	PrefixPortfolio   = "PORTFOLIO#"
	PrefixProject     = "PROJECT#"
	PrefixVoiceRoom   = "VOICE_ROOM#"
	PrefixVoiceConn   = "VOICE_CONN#"
	PrefixConn        = "CONN#"
	PrefixQueue       = "QUEUE#"
	PrefixEvent       = "EVENT#"
)

// SortKeyRoom is the sort key of the connection -> room reverse index row.
const SortKeyRoom = "ROOM"

// SortableTimeLayout is a fixed-width RFC3339 layout; unlike RFC3339Nano it never trims
// trailing zeros, so string order matches time order.
const SortableTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SortableTime formats t for embedding in a sort key.
func SortableTime(t time.Time) string {
	return t.UTC().Format(SortableTimeLayout)
}

// Join builds a key from a prefix and parts separated by '#'.
func Join(prefix string, parts ...string) string {
	return prefix + strings.Join(parts, "#")
}
