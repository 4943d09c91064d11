package middleware

import (
	"bytes"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
)

const maxBodyBytes = 1 << 20

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeBody rewrites JSON request bodies before binding. Object keys that could be read
// as query operators ($-prefixed or dotted) are rejected, and markup is stripped from
// string values. Password fields are left untouched.
func SanitizeBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || !isJSON(c.Request) {
			c.Next()
			return
		}

		raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			apperrors.Abort(c, apperrors.Validation("Request body is too large or unreadable", err))
			return
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			c.Next()
			return
		}

		var body any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			apperrors.Abort(c, apperrors.Validation("Malformed JSON body", err))
			return
		}

		clean, err := sanitizeValue("", body)
		if err != nil {
			apperrors.Abort(c, err)
			return
		}
		out, err := json.Marshal(clean)
		if err != nil {
			apperrors.Abort(c, apperrors.Internal("Failed to re-encode request body", err))
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(out))
		c.Request.ContentLength = int64(len(out))
		c.Next()
	}
}

func sanitizeValue(key string, v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		for k, inner := range val {
			if strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
				return nil, apperrors.Validation("Invalid field name "+k, nil)
			}
			clean, err := sanitizeValue(k, inner)
			if err != nil {
				return nil, err
			}
			val[k] = clean
		}
		return val, nil
	case []any:
		for i, inner := range val {
			clean, err := sanitizeValue(key, inner)
			if err != nil {
				return nil, err
			}
			val[i] = clean
		}
		return val, nil
	case string:
		if strings.Contains(strings.ToLower(key), "password") {
			return val, nil
		}
		return StripMarkup(val), nil
	default:
		return val, nil
	}
}

// StripMarkup removes every HTML element from s and leaves plain text.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	return html.UnescapeString(strictPolicy.Sanitize(s))
}

func isJSON(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return false
	}
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
