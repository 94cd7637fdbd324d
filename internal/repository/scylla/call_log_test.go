package scylla

import (
	"testing"
	"time"
)

func TestBucketDateTruncatesToUTCDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	ts := time.Date(2024, 5, 2, 3, 30, 0, 0, loc)

	got := bucketDate(ts)
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
