package memory

import "hash/fnv"

const shardCount = 32

// shardFor maps a key to one of shardCount lock stripes so unrelated
// accounts and jobs never contend on the same mutex.
func shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}
