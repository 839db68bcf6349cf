package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Sign returns the hex HMAC-SHA256 of fields rendered as key=value pairs,
// sorted by key and joined with '&'.
func Sign(checksumKey string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}

	mac := hmac.New(sha256.New, []byte(checksumKey))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignData signs a decoded webhook data object. Numbers must have been
// decoded as json.Number so that large values keep their exact digits.
func SignData(checksumKey string, data map[string]any) (string, error) {
	fields := make(map[string]string, len(data))
	for k, v := range data {
		s, err := stringify(v)
		if err != nil {
			return "", fmt.Errorf("SignData: field %q: %w", k, err)
		}
		fields[k] = s
	}
	return Sign(checksumKey, fields), nil
}

func verify(checksumKey string, data map[string]any, signature string) bool {
	expected, err := SignData(checksumKey, data)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func stringify(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case int:
		return fmt.Sprint(t), nil
	case int64:
		return fmt.Sprint(t), nil
	default:
		// Nested values are signed in their compact JSON form.
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
