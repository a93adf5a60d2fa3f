package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"testing"
)

func TestNewError(t *testing.T) {
	fieldsBody := []byte(`{"code":"VALIDATION_ERROR","message":"Invalid request","fields":{"email":"Invalid email format"}}`)

	tests := []struct {
		name        string
		op          operation
		status      int
		body        []byte
		wantKind    Kind
		wantMessage string
		wantFields  map[string]string
	}{
		{"login validation", opLogin, http.StatusBadRequest, fieldsBody, KindValidation, "Invalid request", map[string]string{"email": "Invalid email format"}},
		{"login unauthorized", opLogin, http.StatusUnauthorized, []byte(`{"message":"Invalid username or password"}`), KindUnauthorized, "Invalid username or password", nil},
		{"login conflict is unknown", opLogin, http.StatusConflict, []byte(`{"message":"taken"}`), KindUnknown, "taken", nil},
		{"400 without fields is unknown", opLogin, http.StatusBadRequest, []byte(`{"message":"bad"}`), KindUnknown, "bad", nil},
		{"register conflict", opRegister, http.StatusConflict, []byte(`{"message":"This email address is not available"}`), KindConflict, "This email address is not available", nil},
		{"register default message", opRegister, http.StatusInternalServerError, nil, KindUnknown, defaultRegisterMessage, nil},
		{"create post not found", opCreatePost, http.StatusNotFound, []byte(`{"message":"Subject not found"}`), KindNotFound, "Subject not found", nil},
		{"create post validation", opCreatePost, http.StatusBadRequest, fieldsBody, KindValidation, "Invalid request", map[string]string{"email": "Invalid email format"}},
		{"subscribe not found", opSubscribe, http.StatusNotFound, nil, KindNotFound, defaultMessage, nil},
		{"subscribe conflict", opSubscribe, http.StatusConflict, nil, KindConflict, defaultMessage, nil},
		{"update conflict", opUpdateProfile, http.StatusConflict, nil, KindConflict, defaultMessage, nil},
		{"feed collapses to unknown", opFeed, http.StatusNotFound, []byte(`{"message":"User not found"}`), KindUnknown, "User not found", nil},
		{"non-JSON body", opLogin, http.StatusBadGateway, []byte("<html>bad gateway</html>"), KindUnknown, defaultMessage, nil},
		{"non-string message", opLogin, http.StatusUnauthorized, []byte(`{"message":42}`), KindUnauthorized, defaultMessage, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newError(tt.op, tt.status, tt.body)
			if e.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", e.Kind, tt.wantKind)
			}
			if e.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", e.Message, tt.wantMessage)
			}
			if e.Status != tt.status {
				t.Errorf("Status = %d, want %d", e.Status, tt.status)
			}
			if !reflect.DeepEqual(e.Fields, tt.wantFields) {
				t.Errorf("Fields = %v, want %v", e.Fields, tt.wantFields)
			}
		})
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &Error{Op: "login", Kind: KindUnauthorized, Status: 401, Message: "no"})
	if !IsKind(err, KindUnauthorized) {
		t.Error("IsKind() should see through wrapping")
	}
	if IsKind(err, KindConflict) {
		t.Error("IsKind() matched the wrong kind")
	}
	if IsKind(errors.New("plain"), KindUnknown) {
		t.Error("IsKind() matched a non-API error")
	}
}

func TestError_Error(t *testing.T) {
	e := &Error{Op: "register", Kind: KindConflict, Status: 409, Message: "taken"}
	if got, want := e.Error(), "register: conflict (HTTP 409): taken"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
