package phone

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"8 701 111-22-33", "77011112233"},
		{"+7 701 111 22 33", "77011112233"},
		{"7(701)1112233", "77011112233"},
		{"+1 (415) 555-0100", "14155550100"},
		{"8123", "8123"},
		{"", ""},
		{"no digits", ""},
	}

	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEqual(t *testing.T) {
	if !Equal("8 701 111-22-33", "+7 701 111 22 33") {
		t.Fatalf("expected trunk and international forms to be equal")
	}
	if Equal("", "") {
		t.Fatalf("empty numbers must never match")
	}
	if Equal("+7 701 111 22 33", "+7 701 111 22 34") {
		t.Fatalf("different numbers matched")
	}
}

func TestFormatE164(t *testing.T) {
	if got := FormatE164("8 701 111-22-33"); got != "+77011112233" {
		t.Fatalf("FormatE164 = %q", got)
	}
	if got := FormatE164("+1 415 555 2671"); got != "+14155552671" {
		t.Fatalf("FormatE164 = %q", got)
	}
	if got := FormatE164("12"); got != "+12" {
		t.Fatalf("expected fallback for unparseable number, got %q", got)
	}
	if got := FormatE164(""); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestExtension(t *testing.T) {
	if got := Extension(" 100 "); got != "100" {
		t.Fatalf("Extension = %q", got)
	}
}
