package apierr

import (
	"errors"
	"net/http"
	"testing"

	domainagg "github.com/yungbote/fitprogram-backend/internal/domain/aggregates"
)

func TestFromAggregate(t *testing.T) {
	cases := []struct {
		code domainagg.ErrorCode
		want int
	}{
		{domainagg.CodeValidation, http.StatusBadRequest},
		{domainagg.CodeNotFound, http.StatusNotFound},
		{domainagg.CodeConflict, http.StatusConflict},
		{domainagg.CodeInvariantViolation, http.StatusConflict},
		{domainagg.CodeRetryable, http.StatusServiceUnavailable},
		{domainagg.CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got := FromAggregate(domainagg.NewError(tc.code, "op", "boom", nil))
		if got.Status != tc.want {
			t.Fatalf("%s: want=%d got=%d", tc.code, tc.want, got.Status)
		}
	}
	if got := FromAggregate(errors.New("plain")); got.Status != http.StatusInternalServerError {
		t.Fatalf("plain error: want=500 got=%d", got.Status)
	}
	pre := New(http.StatusTeapot, "teapot", nil)
	if got := FromAggregate(pre); got != pre {
		t.Fatalf("existing api error should pass through")
	}
}
