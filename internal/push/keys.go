package push

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeApplicationServerKey decodes a VAPID public key given in url-safe base64, with or
// without padding.
func DecodeApplicationServerKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if pad := len(key) % 4; pad != 0 {
		key += strings.Repeat("=", 4-pad)
	}
	key = strings.NewReplacer("-", "+", "_", "/").Replace(key)
	b, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("decode application server key: %w", err)
	}
	return b, nil
}

// EncodeKey encodes a subscription key the way the shop stores it: standard, padded base64.
func EncodeKey(key []byte) string {
	if len(key) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(key)
}
