package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validationf("title is required"), http.StatusBadRequest},
		{ErrAnswersRequired, http.StatusBadRequest},
		{ErrCandidateEmailInUse, http.StatusBadRequest},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrTestAlreadySubmitted, http.StatusForbidden},
		{ErrExamNotAvailable, http.StatusForbidden},
		{NotFoundf("exam"), http.StatusNotFound},
		{ErrExamHasResults, http.StatusConflict},
		{ErrResultExists, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", ErrCandidateHasResult), http.StatusConflict},
		{fmt.Errorf("%w: pdf", ErrNotImplemented), http.StatusNotImplemented},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestNotFoundfMessage(t *testing.T) {
	if got := NotFoundf("exam").Error(); got != "exam not found" {
		t.Errorf("message = %q", got)
	}
}

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"not found", NotFoundf("candidate"), http.StatusNotFound, "candidate not found"},
		{"forbidden", ErrTestAlreadySubmitted, http.StatusForbidden, "forbidden: test already completed"},
		{"internal hides detail", errors.New("dsn password=hunter2"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			HandleError(c, tt.err)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Code != tt.wantStatus || body.Error != http.StatusText(tt.wantStatus) || body.Message != tt.wantMessage {
				t.Errorf("body = %+v", body)
			}
			if !c.IsAborted() {
				t.Error("context not aborted")
			}
		})
	}
}
