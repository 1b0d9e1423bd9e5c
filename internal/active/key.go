package active

import "github.com/zeebo/xxh3"

// Tunables.
const (
	NumOfShards = 64
	shardMask   = NumOfShards - 1 // faster than division
)

func shardOf(key string) uint64 {
	return xxh3.HashString(key) & shardMask
}
