package store

import (
	"encoding/json"
	"fmt"

	"github.com/HendryAvila/tracky/internal/project"
)

// Bucket names in the state table, one JSON array per entity type.
const (
	bucketPRDs  = "prds"
	bucketEpics = "epics"
	bucketTasks = "tasks"
)

var snapshotBuckets = []string{bucketPRDs, bucketEpics, bucketTasks}

// encodeBucket returns the JSON payload stored for bucket.
func encodeBucket(data *project.Data, bucket string) ([]byte, error) {
	var v any
	switch bucket {
	case bucketPRDs:
		v = nonNil(data.PRDs)
	case bucketEpics:
		v = nonNil(data.Epics)
	case bucketTasks:
		v = nonNil(data.Tasks)
	default:
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", bucket, err)
	}
	return b, nil
}

// decodeBucket fills the matching slice of data. Unknown buckets are ignored
// so older databases with extra rows still load.
func decodeBucket(data *project.Data, bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case bucketPRDs:
		target = &data.PRDs
	case bucketEpics:
		target = &data.Epics
	case bucketTasks:
		target = &data.Tasks
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
