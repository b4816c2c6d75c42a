package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openagri/gatekeeper/internal/gatekeeper/domain"
)

func callbackSink(t *testing.T, status int, got *atomic.Pointer[domain.AuthCallback]) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var cb domain.AuthCallback
		if err := json.NewDecoder(r.Body).Decode(&cb); err == nil && got != nil {
			got.Store(&cb)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNotifyToleratesPartialFailure(t *testing.T) {
	t.Parallel()

	var gotA, gotB atomic.Pointer[domain.AuthCallback]
	okA := callbackSink(t, http.StatusAccepted, &gotA)
	okB := callbackSink(t, http.StatusOK, &gotB)
	dead := callbackSink(t, http.StatusInternalServerError, nil)

	fanout := &FanoutService{
		Registry: NewRegistry(
			domain.ServiceRegistration{Name: "irrigation", APIURL: okA.URL, PostAuthURL: okA.URL},
			domain.ServiceRegistration{Name: "weather", APIURL: okB.URL, PostAuthURL: okB.URL},
			domain.ServiceRegistration{Name: "farm-calendar", APIURL: dead.URL, PostAuthURL: dead.URL},
		),
		CallTimeout: 2 * time.Second,
		MaxRetries:  1,
	}

	id := domain.Identity{ID: "subject-1", Username: "alice"}
	result := fanout.Notify(context.Background(), domain.EventLogin, id)

	require.Equal(t, 2, result.Succeeded())
	require.Equal(t, 1, result.Failed())

	byService := map[string]domain.FanoutOutcome{}
	for _, o := range result.Outcomes {
		byService[o.Service] = o
	}

	require.True(t, byService["irrigation"].OK())
	require.True(t, byService["weather"].OK())

	failed := byService["farm-calendar"]
	require.ErrorIs(t, failed.Err, ErrDownstreamUnavailable)
	require.Equal(t, 2, failed.Attempts, "one retry after the first failure")

	// The healthy services received the real payload despite the dead
	// neighbour.
	for _, got := range []*atomic.Pointer[domain.AuthCallback]{&gotA, &gotB} {
		cb := got.Load()
		require.NotNil(t, cb)
		require.Equal(t, domain.EventLogin, cb.Event)
		require.Equal(t, "subject-1", cb.Subject)
		require.Equal(t, "alice", cb.Username)
	}
}

func TestNotifyTimesOutSlowService(t *testing.T) {
	t.Parallel()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)
	ok := callbackSink(t, http.StatusOK, nil)

	fanout := &FanoutService{
		Registry: NewRegistry(
			domain.ServiceRegistration{Name: "slow", APIURL: slow.URL, PostAuthURL: slow.URL},
			domain.ServiceRegistration{Name: "healthy", APIURL: ok.URL, PostAuthURL: ok.URL},
		),
		CallTimeout: 100 * time.Millisecond,
	}

	start := time.Now()
	result := fanout.Notify(context.Background(), domain.EventLogin, domain.Identity{ID: "s", Username: "u"})
	require.Less(t, time.Since(start), 3*time.Second, "timeout must bound the slow call")

	require.Equal(t, 1, result.Succeeded())
	require.Equal(t, 1, result.Failed())
	for _, o := range result.Outcomes {
		if o.Service == "slow" {
			require.ErrorIs(t, o.Err, ErrDownstreamUnavailable)
		}
	}
}

func TestNotifyRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(flaky.Close)

	fanout := &FanoutService{
		Registry: NewRegistry(domain.ServiceRegistration{
			Name: "irrigation", APIURL: flaky.URL, PostAuthURL: flaky.URL,
		}),
		CallTimeout: 2 * time.Second,
		MaxRetries:  2,
	}

	result := fanout.Notify(context.Background(), domain.EventLogout, domain.Identity{ID: "s", Username: "u"})
	require.Equal(t, 1, result.Succeeded())
	require.Equal(t, 2, result.Outcomes[0].Attempts)
}

func TestNotifyWithEmptyRegistry(t *testing.T) {
	t.Parallel()

	fanout := &FanoutService{Registry: NewRegistry()}
	result := fanout.Notify(context.Background(), domain.EventLogin, domain.Identity{ID: "s"})
	require.Empty(t, result.Outcomes)
	require.Equal(t, 0, result.Failed())
}
