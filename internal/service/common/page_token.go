package common

import (
	"encoding/base64"
	"fmt"

	apperrors "github.com/acme/predictive-dialer/pkg/errors"
)

// EncodePageToken turns a driver paging state into an opaque URL-safe token.
// An empty state means there is no next page.
func EncodePageToken(state []byte) string {
	if len(state) == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(state)
}

// DecodePageToken reverses EncodePageToken. An empty token starts from the
// first page.
func DecodePageToken(token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}
	state, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid page token", apperrors.ErrValidation)
	}
	return state, nil
}
