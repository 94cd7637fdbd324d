package db

import (
	"testing"

	"github.com/gocql/gocql"
)

func TestParseConsistency(t *testing.T) {
	cases := map[string]gocql.Consistency{
		"one":          gocql.One,
		"LOCAL_QUORUM": gocql.LocalQuorum,
		"local_one":    gocql.LocalOne,
		"each_quorum":  gocql.EachQuorum,
		"":             gocql.Quorum,
		"bogus":        gocql.Quorum,
	}
	for in, want := range cases {
		if got := parseConsistency(in); got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}
