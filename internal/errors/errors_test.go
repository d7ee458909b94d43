package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestFromCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{40103, "token expired"},
		{40107, "session expired"},
		{99999, "unknown gateway status"},
	}
	for _, tc := range tests {
		e := FromCode(tc.code)
		if e.Code != tc.code {
			t.Errorf("Code = %d, want %d", e.Code, tc.code)
		}
		if e.Category != CategoryGateway {
			t.Errorf("Category = %q, want gateway", e.Category)
		}
		if got := e.Error(); !strings.Contains(got, tc.want) {
			t.Errorf("Error() = %q, want substring %q", got, tc.want)
		}
	}
}

func TestWrapUnwrap(t *testing.T) {
	inner := stderrors.New("socket closed")
	e := Newf(CategoryTransport, "read failed").Wrap(inner)
	if !stderrors.Is(e, inner) {
		t.Error("errors.Is() lost the wrapped error")
	}
	if !IsCategory(e, CategoryTransport) {
		t.Error("IsCategory() = false, want true")
	}
	if IsCategory(e, CategoryGateway) {
		t.Error("IsCategory() matched the wrong category")
	}
	if got := e.Error(); !strings.Contains(got, "socket closed") {
		t.Errorf("Error() = %q, want it to carry the cause", got)
	}
}
