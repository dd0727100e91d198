// Package pushserver stores push subscriptions and fans notifications out to them.
package pushserver

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	errs "storefront-push/internal/common/errors"
	"storefront-push/internal/common/logger"
	"storefront-push/internal/common/metrics"
	"storefront-push/internal/common/validation"
	"storefront-push/internal/models"
	"storefront-push/pkg/notification"
)

const DefaultUserType = "admin"

type Config struct {
	VAPID       VAPIDConfig
	MaxParallel int
	DefaultURL  string
}

type Service struct {
	config *Config
	store  Store
	sender Sender
	logger logger.Logger
	now    func() time.Time
}

func NewService(config *Config, store Store, sender Sender, log logger.Logger) *Service {
	if config.MaxParallel <= 0 {
		config.MaxParallel = 8
	}
	if config.DefaultURL == "" {
		config.DefaultURL = "/admin"
	}
	return &Service{
		config: config,
		store:  store,
		sender: sender,
		logger: log.WithFields(map[string]interface{}{"component": "push-server"}),
		now:    time.Now,
	}
}

func (s *Service) VAPIDPublicKey() string { return s.config.VAPID.PublicKey }

func (s *Service) Subscribe(ctx context.Context, req models.SubscribeRequest) (*models.StoredSubscription, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, errs.NewInvalidRequestError("userId is required")
	}
	if err := validateSubscription(req.Subscription); err != nil {
		return nil, err
	}

	userType := req.UserType
	if userType == "" {
		userType = DefaultUserType
	}
	stored := &models.StoredSubscription{
		OwnerID:  req.UserID,
		UserType: userType,
		Endpoint: req.Subscription.Endpoint,
		P256dh:   req.Subscription.Keys.P256dh,
		Auth:     req.Subscription.Keys.Auth,
	}
	if err := s.store.Save(ctx, stored); err != nil {
		return nil, err
	}

	s.logger.Info("subscription saved", map[string]interface{}{
		"ownerId":  stored.OwnerID,
		"userType": stored.UserType,
	})
	return stored, nil
}

// Unsubscribe deletes the record. Unknown endpoints are not an error.
func (s *Service) Unsubscribe(ctx context.Context, req models.UnsubscribeRequest) (bool, error) {
	if strings.TrimSpace(req.Endpoint) == "" {
		return false, errs.NewInvalidRequestError("endpoint is required")
	}
	removed, err := s.store.Delete(ctx, req.UserID, req.Endpoint)
	if err != nil {
		return false, err
	}
	return removed != nil, nil
}

// Rotate swaps a subscription invalidated by the push service for its replacement.
func (s *Service) Rotate(ctx context.Context, req models.RotateRequest) (*models.StoredSubscription, error) {
	if strings.TrimSpace(req.OldEndpoint) == "" {
		return nil, errs.NewInvalidRequestError("oldEndpoint is required")
	}
	if err := validateSubscription(req.Subscription); err != nil {
		return nil, err
	}
	rotated, err := s.store.Rotate(ctx, req.OldEndpoint, &models.StoredSubscription{
		Endpoint: req.Subscription.Endpoint,
		P256dh:   req.Subscription.Keys.P256dh,
		Auth:     req.Subscription.Keys.Auth,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("subscription rotated", map[string]interface{}{
		"ownerId": rotated.OwnerID,
	})
	return rotated, nil
}

// Send delivers one notification to every subscription of the target. Deliveries are
// attempted once; endpoints answering 404 or 410 are deleted.
func (s *Service) Send(ctx context.Context, req models.SendRequest) (*models.SendResponse, error) {
	result, err := validation.ValidateSendRequest(req)
	if err != nil {
		return nil, errs.NewInvalidRequestError(err.Error())
	}
	if !result.Valid {
		return nil, errs.NewInvalidRequestError(strings.Join(result.GetErrorMessages(), "; "))
	}
	if !s.config.VAPID.Configured() {
		return nil, errs.NewConfigurationError("VAPID keys are not configured")
	}

	targets, err := s.targets(ctx, req)
	if err != nil {
		return nil, err
	}

	url := req.URL
	if url == "" {
		url = s.config.DefaultURL
	}
	payload, err := json.Marshal(notification.Payload{
		Title:     req.Title,
		Body:      req.Message,
		URL:       url,
		Tag:       req.Tag,
		ID:        uuid.NewString(),
		Timestamp: s.now().UnixMilli(),
	})
	if err != nil {
		return nil, errs.NewInvalidRequestError(err.Error())
	}

	resp := &models.SendResponse{
		TotalSubscriptions: len(targets),
		Results:            make([]models.SendResult, len(targets)),
	}

	sem := make(chan struct{}, s.config.MaxParallel)
	var wg sync.WaitGroup
	for i := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			resp.Results[i] = s.deliver(ctx, targets[i], payload)
		}(i)
	}
	wg.Wait()

	for _, r := range resp.Results {
		if r.Success {
			resp.SuccessCount++
		}
	}

	s.logger.Info("notification sent", map[string]interface{}{
		"title":        req.Title,
		"userId":       req.UserID,
		"userType":     req.UserType,
		"successCount": resp.SuccessCount,
		"total":        resp.TotalSubscriptions,
	})
	return resp, nil
}

// Test sends a fixed notification to every admin subscription and reports whether the
// server is able to deliver at all.
func (s *Service) Test(ctx context.Context) (*models.TestResponse, error) {
	out := &models.TestResponse{VAPIDConfigured: s.config.VAPID.Configured()}
	if !out.VAPIDConfigured {
		out.Message = "VAPID keys are not configured"
		return out, nil
	}

	resp, err := s.Send(ctx, models.SendRequest{
		Title:    "Test notification",
		Message:  "Push notifications are working",
		URL:      s.config.DefaultURL,
		Tag:      "push-test",
		UserType: DefaultUserType,
	})
	if err != nil {
		return nil, err
	}

	out.TotalSubscriptions = resp.TotalSubscriptions
	out.SuccessCount = resp.SuccessCount
	out.Results = resp.Results
	out.Sent = resp.SuccessCount > 0
	out.Success = out.Sent
	switch {
	case resp.TotalSubscriptions == 0:
		out.Message = "no admin subscriptions stored"
	case !out.Sent:
		out.Message = "no delivery succeeded"
	default:
		out.Message = "test notification sent"
	}
	return out, nil
}

// Notify renders a storefront business event through its template and sends it to
// admins.
func (s *Service) Notify(ctx context.Context, ev models.StorefrontEvent, templates *Templates) (*models.SendResponse, error) {
	req, ok, err := templates.Render(ev)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Debug("no template for event", map[string]interface{}{"eventType": ev.Type})
		return nil, nil
	}
	return s.Send(ctx, *req)
}

func (s *Service) targets(ctx context.Context, req models.SendRequest) ([]models.StoredSubscription, error) {
	if req.UserID != "" {
		return s.store.ListByOwner(ctx, req.UserID)
	}
	userType := req.UserType
	if userType == "" {
		userType = DefaultUserType
	}
	return s.store.ListByUserType(ctx, userType)
}

func (s *Service) deliver(ctx context.Context, sub models.StoredSubscription, payload []byte) models.SendResult {
	result := models.SendResult{Endpoint: sub.Endpoint}

	d, err := s.sender.Send(ctx, sub, payload)
	if err != nil {
		metrics.PushDeliveries.WithLabelValues("error").Inc()
		result.Error = err.Error()
		s.logger.Warn("push delivery failed", map[string]interface{}{
			"ownerId": sub.OwnerID,
			"error":   err.Error(),
		})
		return result
	}

	result.StatusCode = d.StatusCode
	if d.OK() {
		metrics.PushDeliveries.WithLabelValues("success").Inc()
		result.Success = true
		return result
	}

	stdErr := errs.NewDeliveryFailedError(d.StatusCode, nil)
	result.Error = stdErr.Message
	result.Body = d.Body

	if d.Gone() {
		metrics.PushDeliveries.WithLabelValues("removed").Inc()
		if _, err := s.store.Delete(ctx, "", sub.Endpoint); err != nil {
			s.logger.Error("remove expired subscription failed", map[string]interface{}{
				"ownerId": sub.OwnerID,
				"error":   err.Error(),
			})
		} else {
			result.Removed = true
		}
		return result
	}

	metrics.PushDeliveries.WithLabelValues("failed").Inc()
	s.logger.Warn("push service rejected delivery", map[string]interface{}{
		"ownerId":    sub.OwnerID,
		"statusCode": d.StatusCode,
		"body":       d.Body,
	})
	return result
}

func validateSubscription(sub models.PushSubscription) error {
	result, err := validation.ValidateSubscription(sub)
	if err != nil {
		return errs.NewSubscriptionInvalidError(err.Error())
	}
	if !result.Valid {
		return errs.NewSubscriptionInvalidError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}
