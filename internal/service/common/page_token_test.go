package common

import (
	"errors"
	"testing"

	apperrors "github.com/acme/predictive-dialer/pkg/errors"
)

func TestPageTokenRoundTrip(t *testing.T) {
	state := []byte{0x00, 0xff, 0x10, 'a'}
	token := EncodePageToken(state)
	if token == "" {
		t.Fatalf("expected token")
	}
	got, err := DecodePageToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != string(state) {
		t.Fatalf("expected %v, got %v", state, got)
	}
}

func TestPageTokenEmpty(t *testing.T) {
	if tok := EncodePageToken(nil); tok != "" {
		t.Fatalf("expected empty token, got %q", tok)
	}
	state, err := DecodePageToken("")
	if err != nil || state != nil {
		t.Fatalf("expected nil state, got %v %v", state, err)
	}
}

func TestDecodePageTokenInvalid(t *testing.T) {
	if _, err := DecodePageToken("not base64!"); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
