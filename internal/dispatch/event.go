package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"jobnotify/internal/domain"
)

// eventClaims is the payload of the upstream webhook token.
type eventClaims struct {
	EventArgs struct {
		Entry []struct {
			UUID string `json:"uuid"`
		} `json:"entry"`
	} `json:"eventArgs"`
	jwt.RegisteredClaims
}

// DecodeEvent extracts the job id from a webhook body. The body is a
// single-key object, JSON or form encoded, whose key is the signed token.
// The signature is not verified.
func DecodeEvent(contentType string, body []byte) (domain.CompletionEvent, error) {
	keys, err := bodyKeys(contentType, body)
	if err != nil {
		return domain.CompletionEvent{}, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}
	if len(keys) == 0 {
		return domain.CompletionEvent{}, fmt.Errorf("%w: empty body", domain.ErrInvalidEvent)
	}

	var lastErr error
	for _, raw := range keys {
		var claims eventClaims
		if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(raw), &claims); err != nil {
			lastErr = err
			continue
		}
		if len(claims.EventArgs.Entry) == 0 || claims.EventArgs.Entry[0].UUID == "" {
			lastErr = fmt.Errorf("token has no eventArgs.entry[0].uuid")
			continue
		}
		return domain.CompletionEvent{JobID: claims.EventArgs.Entry[0].UUID}, nil
	}
	return domain.CompletionEvent{}, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, lastErr)
}

func bodyKeys(contentType string, body []byte) ([]string, error) {
	body = bytes.TrimSpace(body)
	mt, _, _ := mime.ParseMediaType(contentType)

	if mt == "application/json" || bytes.HasPrefix(body, []byte("{")) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, fmt.Errorf("decode json body: %w", err)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		return keys, nil
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("decode form body: %w", err)
	}
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	return keys, nil
}
