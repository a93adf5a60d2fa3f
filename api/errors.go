package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Kind is the category of a failed API call
type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not-found"
	KindUnauthorized Kind = "unauthorized"
	KindUnknown      Kind = "unknown"
)

const (
	defaultMessage         = "An error occurred"
	defaultRegisterMessage = "An error occurred, please try again."
)

// Error is a non-2xx API response mapped to a Kind.
// Fields is only set for KindValidation.
type Error struct {
	Op      string
	Kind    Kind
	Status  int
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Op, e.Kind, e.Status, e.Message)
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// operation names a call and the error kinds its caller distinguishes.
// Any status outside those kinds maps to KindUnknown.
type operation struct {
	name           string
	defaultMessage string
	kinds          []Kind
}

func (op operation) handles(kind Kind) bool {
	for _, k := range op.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

var (
	opLogin         = operation{"login", defaultMessage, []Kind{KindValidation, KindUnauthorized}}
	opRegister      = operation{"register", defaultRegisterMessage, []Kind{KindValidation, KindConflict}}
	opFeed          = operation{name: "get feed", defaultMessage: defaultMessage}
	opListSubjects  = operation{name: "list subjects", defaultMessage: defaultMessage}
	opSubscribe     = operation{"subscribe", defaultMessage, []Kind{KindNotFound, KindConflict}}
	opUnsubscribe   = operation{name: "unsubscribe", defaultMessage: defaultMessage}
	opCreatePost    = operation{"create post", defaultMessage, []Kind{KindValidation, KindNotFound}}
	opGetPost       = operation{name: "get post", defaultMessage: defaultMessage}
	opAddComment    = operation{name: "add comment", defaultMessage: defaultMessage}
	opGetProfile    = operation{name: "get profile", defaultMessage: defaultMessage}
	opUpdateProfile = operation{"update profile", defaultMessage, []Kind{KindValidation, KindConflict}}
)

// newError maps a non-2xx response body of the form {code, message, fields}.
// The payload is optional; a body that is not JSON yields the default message.
func newError(op operation, status int, body []byte) *Error {
	e := &Error{Op: op.name, Kind: KindUnknown, Status: status, Message: op.defaultMessage}

	var fields map[string]string
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		if msg := parsed.Get("message"); msg.Type == gjson.String && msg.String() != "" {
			e.Message = msg.String()
		}
		if f := parsed.Get("fields"); f.IsObject() {
			fields = make(map[string]string)
			f.ForEach(func(key, value gjson.Result) bool {
				fields[key.String()] = value.String()
				return true
			})
		}
	}

	var kind Kind
	switch {
	case status == http.StatusBadRequest && fields != nil:
		kind = KindValidation
	case status == http.StatusConflict:
		kind = KindConflict
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusUnauthorized:
		kind = KindUnauthorized
	}
	if kind != "" && op.handles(kind) {
		e.Kind = kind
		if kind == KindValidation {
			e.Fields = fields
		}
	}
	return e
}
