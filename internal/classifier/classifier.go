// Package classifier maps attack animation ids to timing buckets.
//
// The table ships as an embedded JSON asset and is built once on first use.
// After that it is never mutated, so lookups need no locking.
package classifier

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/livepid/tracker/pkg/core"
)

//go:embed animations.json
var animationsAsset []byte

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	tableOnce sync.Once
	table     map[int]core.Bucket
)

// Classify returns the timing bucket of an animation. ok is false for
// animations that are not attacks we can time.
func Classify(animationID int) (bucket core.Bucket, ok bool) {
	bucket, ok = load()[animationID]
	return bucket, ok
}

// Len returns the number of classified animations.
func Len() int {
	return len(load())
}

// IDs returns the sorted animation ids registered under a bucket.
func IDs(bucket core.Bucket) []int {
	var ids []int
	for id, b := range load() {
		if b == bucket {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

func load() map[int]core.Bucket {
	tableOnce.Do(func() {
		t, err := parseTable(animationsAsset)
		if err != nil {
			panic(fmt.Sprintf("classifier: embedded animation table: %v", err))
		}
		table = t
	})
	return table
}

// parseTable decodes a {"BUCKET": [ids...]} document. An id listed under two
// buckets is rejected.
func parseTable(data []byte) (map[int]core.Bucket, error) {
	var raw map[string][]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error decoding animation table: %w", err)
	}

	t := make(map[int]core.Bucket, 160)
	for name, ids := range raw {
		bucket, err := core.ParseBucket(name)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if prev, dup := t[id]; dup {
				return nil, fmt.Errorf("animation %d listed under %s and %s", id, prev, bucket)
			}
			t[id] = bucket
		}
	}
	return t, nil
}
