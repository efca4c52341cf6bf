package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func timeoutRouter(d time.Duration, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestTimeout(d))
	r.GET("/tasks", h)
	return r
}

func okHandler(c *gin.Context) { c.String(http.StatusOK, "ok") }

func TestRequestTimeout_DisabledDurations(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		var hasDeadline bool
		r := timeoutRouter(d, func(c *gin.Context) {
			_, hasDeadline = c.Request.Context().Deadline()
			okHandler(c)
		})
		w := httptest.NewRecorder()

		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks", nil))

		if w.Code != http.StatusOK {
			t.Errorf("%v: expected status 200, got %d", d, w.Code)
		}
		if hasDeadline {
			t.Errorf("%v: expected no deadline", d)
		}
	}
}

func TestRequestTimeout_ContextHasDeadline(t *testing.T) {
	var hasDeadline bool
	r := timeoutRouter(5*time.Second, func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		okHandler(c)
	})
	w := httptest.NewRecorder()

	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if !hasDeadline {
		t.Error("expected context to have deadline")
	}
}

func TestRequestTimeout_EventStreamHasNoDeadline(t *testing.T) {
	var hasDeadline bool
	r := timeoutRouter(5*time.Second, func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		okHandler(c)
	})
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Accept", "text/event-stream")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if hasDeadline {
		t.Error("expected event stream request to have no deadline")
	}
}

func TestRequestTimeout_TimeoutTriggered(t *testing.T) {
	r := timeoutRouter(50*time.Millisecond, func(c *gin.Context) {
		select {
		case <-time.After(200 * time.Millisecond):
			okHandler(c)
		case <-c.Request.Context().Done():
			return
		}
	})
	w := httptest.NewRecorder()

	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks", nil))

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("expected status 504 Gateway Timeout, got %d", w.Code)
	}
}

func TestRequestTimeout_HandlerWritesBeforeTimeout(t *testing.T) {
	r := timeoutRouter(100*time.Millisecond, func(c *gin.Context) {
		okHandler(c)
		time.Sleep(150 * time.Millisecond)
	})
	w := httptest.NewRecorder()

	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 (already written), got %d", w.Code)
	}
}
