package telephony

import (
	"strconv"
	"strings"

	"github.com/acme/predictive-dialer/internal/domain"
)

var (
	callIDKeys = []string{"uuid", "call_id"}
	typeKeys   = []string{"event", "status"}
)

// EventFromPayload builds a ProviderEvent from a decoded webhook body.
// Scalar values are kept as strings; nested values are ignored.
func EventFromPayload(payload map[string]any) domain.ProviderEvent {
	fields := make(map[string]string, len(payload))
	for k, v := range payload {
		if s, ok := scalar(v); ok {
			fields[strings.ToLower(k)] = s
		}
	}
	return EventFromFields(fields)
}

// EventFromFields builds a ProviderEvent from flat key/value pairs such as a
// form-encoded webhook.
func EventFromFields(fields map[string]string) domain.ProviderEvent {
	return domain.ProviderEvent{
		CallID: firstOf(fields, callIDKeys),
		Type:   firstOf(fields, typeKeys),
		Fields: fields,
	}
}

func firstOf(fields map[string]string, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(fields[k]); v != "" {
			return v
		}
	}
	return ""
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
