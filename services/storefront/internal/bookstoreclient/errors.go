package bookstoreclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Kind classifies a backend failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransport: the request never completed, the backend failed (5xx),
	// or the body could not be parsed.
	KindTransport
	KindValidation
	KindNotFound
	KindUnauthorized
	KindInsufficientStock
	// KindDuplicateField: a unique column rejected the write; Error.Field names it.
	KindDuplicateField
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindDuplicateField:
		return "duplicate_field"
	default:
		return "unknown"
	}
}

// Error is returned by every Client method on failure.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Detail string
	Field  string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Status > 0 {
		return fmt.Sprintf("bookstore %s: %s (%d): %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("bookstore %s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is a backend error of kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

var duplicateKeyRX = regexp.MustCompile(`for key '([^']+)'`)

// stockShortagePhrases are the backend texts for a write that exceeds stock.
// Other details that merely mention stock, such as admin field checks, stay
// validation errors.
var stockShortagePhrases = []string{"not enough stock", "insufficient stock", "out of stock"}

// decodeError maps a non-2xx response to a classified *Error. Substring
// matching on backend text happens here and nowhere else.
func decodeError(op string, status int, body []byte) *Error {
	detail := parseDetail(body)
	e := &Error{Op: op, Status: status, Detail: detail}
	lower := strings.ToLower(detail)
	switch {
	case status >= http.StatusInternalServerError:
		e.Kind = KindTransport
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindUnauthorized
	case strings.Contains(detail, "Duplicate entry"):
		e.Kind = KindDuplicateField
		e.Field = duplicateField(detail)
	case containsAny(lower, stockShortagePhrases):
		e.Kind = KindInsufficientStock
	default:
		e.Kind = KindValidation
	}
	return e
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// parseDetail extracts the human-readable message from an error body. The
// backend sends {"detail": "..."} for handled errors and
// {"detail": [{"loc": [...], "msg": "..."}]} for request validation.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return strings.TrimSpace(string(body))
	}
	if len(envelope.Detail) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Detail, &text); err == nil {
			return strings.TrimSpace(text)
		}
		var items []struct {
			Loc []any  `json:"loc"`
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if len(it.Loc) > 0 {
					msgs = append(msgs, fmt.Sprintf("%v: %s", it.Loc[len(it.Loc)-1], it.Msg))
					continue
				}
				msgs = append(msgs, it.Msg)
			}
			return strings.Join(msgs, "; ")
		}
	}
	return strings.TrimSpace(envelope.Error)
}

// duplicateField reads the column from "Duplicate entry 'x' for key 'user.email'".
// When the key name is missing it falls back to the known unique columns.
func duplicateField(detail string) string {
	if m := duplicateKeyRX.FindStringSubmatch(detail); len(m) == 2 {
		key := m[1]
		if i := strings.LastIndex(key, "."); i >= 0 {
			key = key[i+1:]
		}
		return strings.ToLower(key)
	}
	lower := strings.ToLower(detail)
	for _, field := range []string{"email", "username"} {
		if strings.Contains(lower, field) {
			return field
		}
	}
	return ""
}
