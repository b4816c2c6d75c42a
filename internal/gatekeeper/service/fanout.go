package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/openagri/gatekeeper/internal/gatekeeper/domain"
	"github.com/openagri/gatekeeper/pkg/slogx"
)

// Fanout defaults; all overridable per instance.
const (
	defaultFanoutConcurrency = 8
	defaultCallTimeout       = 5 * time.Second
	defaultBackoffInitial    = 250 * time.Millisecond
)

// FanoutService delivers post-auth callbacks to every registered
// service. Delivery is best effort: one slow or dead service delays or
// loses only its own callback, never the login or logout that
// triggered it and never another service's callback.
type FanoutService struct {
	Registry *RegistryService

	// Client defaults to http.DefaultClient.
	Client *http.Client

	// CallTimeout bounds one HTTP attempt, not the whole retry budget.
	CallTimeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64

	// Concurrency caps in-flight callbacks.
	Concurrency int
}

// Notify fans the event out to every registered service and reports
// per-service outcomes. It blocks until every callback has succeeded
// or exhausted its retries, but never returns an error: partial
// failure is an expected operating mode, not a fault.
func (s *FanoutService) Notify(
	ctx context.Context,
	event domain.AuthEvent,
	identity domain.Identity,
) domain.FanoutResult {
	targets := s.Registry.List()
	outcomes := make([]domain.FanoutOutcome, len(targets))

	body, err := json.Marshal(domain.AuthCallback{
		Event:    event,
		Subject:  identity.ID,
		Username: identity.Username,
		IssuedAt: time.Now().UTC(),
	})
	if err != nil {
		// Marshalling a flat struct of strings cannot fail; keep the
		// signature honest anyway.
		for i, svc := range targets {
			outcomes[i] = domain.FanoutOutcome{Service: svc.Name, Err: err}
		}
		return domain.FanoutResult{Event: event, Outcomes: outcomes}
	}

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency())
	for i, svc := range targets {
		g.Go(func() error {
			outcomes[i] = s.notifyOne(ctx, svc, body)
			return nil
		})
	}
	_ = g.Wait()

	result := domain.FanoutResult{Event: event, Outcomes: outcomes}

	log := slogx.FromContext(ctx)
	for _, o := range result.Outcomes {
		if o.OK() {
			log.Debug("post-auth callback delivered",
				"event", string(event), "service", o.Service,
				"attempts", o.Attempts, "took", o.Duration)
		} else {
			log.Warn("post-auth callback failed",
				"event", string(event), "service", o.Service,
				"attempts", o.Attempts, "err", o.Err)
		}
	}
	return result
}

// notifyOne delivers to a single service with bounded retries. Any
// non-2xx status counts as a failure and is retried like a transport
// error.
func (s *FanoutService) notifyOne(
	ctx context.Context,
	svc domain.ServiceRegistration,
	body []byte,
) domain.FanoutOutcome {
	start := time.Now()
	attempts := 0

	attempt := func() error {
		attempts++

		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
		defer cancel()

		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, svc.PostAuthURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client().Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDownstreamUnavailable, err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("%w: status %d", ErrDownstreamUnavailable, resp.StatusCode)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = defaultBackoffInitial
	err := backoff.Retry(attempt, backoff.WithContext(
		backoff.WithMaxRetries(bo, s.MaxRetries), ctx))
	if err != nil {
		err = fmt.Errorf("notify %s: %w", svc.Name, err)
	}

	return domain.FanoutOutcome{
		Service:  svc.Name,
		Attempts: attempts,
		Duration: time.Since(start),
		Err:      err,
	}
}

func (s *FanoutService) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *FanoutService) callTimeout() time.Duration {
	if s.CallTimeout > 0 {
		return s.CallTimeout
	}
	return defaultCallTimeout
}

func (s *FanoutService) concurrency() int {
	if s.Concurrency > 0 {
		return s.Concurrency
	}
	return defaultFanoutConcurrency
}
