package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/adaa/pkg/metrics"
)

// fakeSlackAPI serves chat.postMessage and conversations.history.
type fakeSlackAPI struct {
	mu       sync.Mutex
	posts    []url.Values
	history  []map[string]any
	postFail bool
}

func (f *fakeSlackAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.HasSuffix(r.URL.Path, "chat.postMessage"):
		if f.postFail {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
			return
		}
		f.posts = append(f.posts, r.Form)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": "C123", "ts": "1700000000.000100"})
	case strings.HasSuffix(r.URL.Path, "conversations.history"):
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "messages": f.history, "has_more": false})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSlackAPI) recordedPosts() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.posts...)
}

func newTestService(t *testing.T, api *fakeSlackAPI) (*Service, *prometheus.Registry) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	reg := prometheus.NewRegistry()
	client := NewClientWithAPIURL("xoxb-test", "C123", srv.URL+"/")
	return NewServiceWithClient(client, "https://dash.example.com", metrics.MustNew(reg)), reg
}

func notificationCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "adaa_slack_notifications_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestService_NilReceiver(t *testing.T) {
	var s *Service

	t.Run("NotifyAnalysisStarted is no-op", func(t *testing.T) {
		ts := s.NotifyAnalysisStarted(context.Background(), AnalysisStartedInput{TaskID: "task-1"})
		assert.Empty(t, ts)
	})

	t.Run("NotifyAnalysisCompleted is no-op", func(_ *testing.T) {
		s.NotifyAnalysisCompleted(context.Background(), AnalysisCompletedInput{
			TaskID: "task-1",
			Status: "completed",
		})
	})
}

func TestNewService(t *testing.T) {
	t.Run("returns nil when token empty", func(t *testing.T) {
		assert.Nil(t, NewService(ServiceConfig{Token: "", Channel: "C123"}))
	})

	t.Run("returns nil when channel empty", func(t *testing.T) {
		assert.Nil(t, NewService(ServiceConfig{Token: "xoxb-test", Channel: ""}))
	})

	t.Run("returns service when configured", func(t *testing.T) {
		svc := NewService(ServiceConfig{
			Token:        "xoxb-test",
			Channel:      "C123",
			DashboardURL: "https://example.com",
		})
		assert.NotNil(t, svc)
	})
}

func TestService_StartedThenCompletedThreads(t *testing.T) {
	api := &fakeSlackAPI{}
	svc, reg := newTestService(t, api)
	ctx := context.Background()

	ts := svc.NotifyAnalysisStarted(ctx, AnalysisStartedInput{TaskID: "task-1", Filename: "sales.csv"})
	require.Equal(t, "1700000000.000100", ts)

	svc.NotifyAnalysisCompleted(ctx, AnalysisCompletedInput{
		TaskID:   "task-1",
		Filename: "sales.csv",
		Status:   "completed",
		Result:   sampleResult(),
		ThreadTS: ts,
	})

	posts := api.recordedPosts()
	require.Len(t, posts, 2)
	assert.Empty(t, posts[0].Get("thread_ts"))
	assert.Contains(t, posts[0].Get("text"), "task task-1")
	assert.Equal(t, ts, posts[1].Get("thread_ts"))
	assert.Contains(t, posts[1].Get("text"), "Analysis Complete")
	assert.Equal(t, 2.0, notificationCount(t, reg, outcomeSent))
}

func TestService_CompletedFindsThreadByFingerprint(t *testing.T) {
	api := &fakeSlackAPI{
		history: []map[string]any{
			{"type": "message", "text": "Analysis started: other.csv (task task-9)", "ts": "1699999999.000001"},
			{"type": "message", "text": "Analysis started: sales.csv (TASK   task-1)", "ts": "1700000000.000050"},
		},
	}
	svc, _ := newTestService(t, api)

	svc.NotifyAnalysisCompleted(context.Background(), AnalysisCompletedInput{
		TaskID: "task-1",
		Status: "failed",
	})

	posts := api.recordedPosts()
	require.Len(t, posts, 1)
	assert.Equal(t, "1700000000.000050", posts[0].Get("thread_ts"))
}

func TestService_CompletedWithoutThreadPostsTopLevel(t *testing.T) {
	api := &fakeSlackAPI{}
	svc, _ := newTestService(t, api)

	svc.NotifyAnalysisCompleted(context.Background(), AnalysisCompletedInput{
		TaskID: "task-1",
		Status: "cancelled",
	})

	posts := api.recordedPosts()
	require.Len(t, posts, 1)
	assert.Empty(t, posts[0].Get("thread_ts"))
}

func TestService_PostFailureIsCounted(t *testing.T) {
	api := &fakeSlackAPI{postFail: true}
	svc, reg := newTestService(t, api)

	ts := svc.NotifyAnalysisStarted(context.Background(), AnalysisStartedInput{TaskID: "task-1"})

	assert.Empty(t, ts)
	assert.Equal(t, 1.0, notificationCount(t, reg, outcomeFailed))
	assert.Equal(t, 0.0, notificationCount(t, reg, outcomeSent))
}
