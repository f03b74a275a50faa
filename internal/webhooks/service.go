package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Risk-Signature"

const maxAttempts = 3

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(event string, success bool)

// Service manages webhook subscriptions and event dispatching.
type Service struct {
	store      Store
	httpClient *http.Client
	onMetrics  MetricsRecorder
	retryDelay []time.Duration // wait before attempts 2 and 3
	inflight   sync.WaitGroup
	logger     *zap.Logger
}

// NewService creates a new webhook Service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retryDelay: []time.Duration{1 * time.Second, 5 * time.Second},
		logger:     logger,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (s *Service) SetMetricsRecorder(fn MetricsRecorder) {
	s.onMetrics = fn
}

// Subscribe creates a subscription with a generated HMAC secret.
func (s *Service) Subscribe(ctx context.Context, req *CreateSubscriptionRequest) (*Subscription, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	sub := &Subscription{
		URL:       req.URL,
		Events:    req.Events,
		ProjectID: req.ProjectID,
		Secret:    secret,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

// Unsubscribe deletes a subscription.
func (s *Service) Unsubscribe(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}

// List returns every subscription.
func (s *Service) List(ctx context.Context) ([]*Subscription, error) {
	return s.store.List(ctx)
}

// Dispatch fans an event out to matching subscriptions. Deliveries run in
// the background and outlive the caller's context cancellation.
func (s *Service) Dispatch(ctx context.Context, eventType string, projectID int64, payload map[string]string) {
	subs, err := s.store.ListByEvent(ctx, eventType, projectID)
	if err != nil {
		s.logger.Error("webhook: list subscribers", zap.String("event", eventType), zap.Error(err))
		return
	}

	event := Event{
		Type:      eventType,
		ProjectID: projectID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	bg := context.WithoutCancel(ctx)
	for _, sub := range subs {
		s.inflight.Add(1)
		go func(sub *Subscription) {
			defer s.inflight.Done()
			s.deliver(bg, sub, event)
		}(sub)
	}
}

// Wait blocks until every in-flight delivery has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) deliver(ctx context.Context, sub *Subscription, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("webhook: marshal event", zap.Error(err))
		return
	}
	signature := Sign(body, sub.Secret)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 && attempt-2 < len(s.retryDelay) {
			time.Sleep(s.retryDelay[attempt-2])
		}

		success, statusCode, errMsg := s.doDelivery(ctx, sub.URL, body, signature)

		delivery := &Delivery{
			SubscriptionID: sub.ID,
			EventType:      event.Type,
			Payload:        body,
			StatusCode:     statusCode,
			Attempt:        attempt,
			Success:        success,
			ErrorMessage:   errMsg,
		}
		if recordErr := s.store.RecordDelivery(ctx, delivery); recordErr != nil {
			s.logger.Warn("webhook: record delivery", zap.Error(recordErr))
		}
		if s.onMetrics != nil {
			s.onMetrics(event.Type, success)
		}
		if success {
			return
		}

		s.logger.Warn("webhook: delivery failed",
			zap.String("url", sub.URL),
			zap.String("event", event.Type),
			zap.Int("attempt", attempt),
			zap.String("error", errMsg),
		)
	}
}

func (s *Service) doDelivery(ctx context.Context, url string, body []byte, signature string) (bool, int, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, 0, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, 0, err.Error()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	errMsg := ""
	if !success {
		errMsg = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return success, resp.StatusCode, errMsg
}

// Sign computes the value of SignatureHeader for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
