package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type stubGate struct {
	exists bool
	active bool
}

func (g stubGate) SessionState(uuid.UUID) (exists, active bool) {
	return g.exists, g.active
}

func newStreamRouter(hub *Hub, gate SessionGate, ping time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/lectures/:id/stream", StreamHandler(hub, gate, ping, zap.NewNop()))
	return router
}

func TestStreamHandlerGate(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)

	cases := []struct {
		name       string
		id         string
		gate       stubGate
		wantStatus int
	}{
		{"invalid id", "not-a-uuid", stubGate{}, http.StatusBadRequest},
		{"unknown lecture", uuid.NewString(), stubGate{exists: false}, http.StatusNotFound},
		{"ended lecture", uuid.NewString(), stubGate{exists: true, active: false}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newStreamRouter(hub, tc.gate, time.Second)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/lectures/"+tc.id+"/stream", nil)
			router.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}

func TestStreamHandlerFrames(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	lectureID := uuid.New()
	router := newStreamRouter(hub, stubGate{exists: true, active: true}, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/lectures/"+lectureID.String()+"/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for hub.SubscriberCount(lectureID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed to the hub")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(lectureID, EventHighlight, map[string]string{"text": "F = ma"})
	time.Sleep(80 * time.Millisecond) // long enough for the event and a ping
	cancel()
	<-done

	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := w.Header().Get("X-Accel-Buffering"); got != "no" {
		t.Fatalf("X-Accel-Buffering = %q", got)
	}

	body := w.Body.String()
	if !strings.HasPrefix(body, "event: connected\ndata: {}\n\n") {
		t.Fatalf("stream does not open with a connected frame: %q", body[:min(len(body), 80)])
	}
	if !strings.Contains(body, "event: highlight\ndata: ") {
		t.Fatalf("highlight frame missing from stream: %q", body)
	}
	if !strings.Contains(body, `"text":"F = ma"`) {
		t.Fatalf("highlight payload missing from stream: %q", body)
	}
	if !strings.Contains(body, "event: ping\ndata: {}\n\n") {
		t.Fatalf("ping frame missing from stream: %q", body)
	}

	if hub.SubscriberCount(lectureID) != 0 {
		t.Fatal("disconnected stream still subscribed")
	}
}
