package storage

import (
	"os"
	"time"
)

// DateLayout is the layout of day keys used by the stores.
const DateLayout = "2006-01-02"

// EnsureDir ensures a directory exists with default permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// DayOf returns the UTC day key of an epoch-millisecond timestamp.
func DayOf(ts int64) string {
	return time.UnixMilli(ts).UTC().Format(DateLayout)
}
