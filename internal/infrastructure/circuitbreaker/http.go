package circuitbreaker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ServiceClient provides circuit breaker protection for service calls
type ServiceClient struct {
	manager *Manager
	log     *zap.Logger
}

// NewServiceClient creates a new service client
func NewServiceClient(manager *Manager, log *zap.Logger) *ServiceClient {
	return &ServiceClient{
		manager: manager,
		log:     log,
	}
}

// Call executes a service call with circuit breaker protection
func (c *ServiceClient) Call(ctx context.Context, service string, fn func(context.Context) error) error {
	breaker := c.manager.Get(service, DefaultSettings())

	_, err := breaker.ExecuteCtx(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, fn(ctx)
	})

	return err
}

// CallWithResult executes a service call with circuit breaker protection and returns a result
func CallWithResult[T any](c *ServiceClient, ctx context.Context, service string, fn func(context.Context) (T, error)) (T, error) {
	breaker := c.manager.Get(service, DefaultSettings())

	result, err := breaker.ExecuteCtx(ctx, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})

	if err != nil {
		var zero T
		return zero, err
	}

	return result.(T), nil
}

// RetryWithBackoff executes a function with retry and exponential backoff
func RetryWithBackoff(ctx context.Context, maxRetries int, initialDelay time.Duration, fn func() error) error {
	var lastErr error
	delay := initialDelay

	for i := 0; i <= maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		// Don't retry circuit breaker errors
		if IsCircuitOpen(err) || IsTooManyRequests(err) {
			return err
		}

		// Check context
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2 // Exponential backoff
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
