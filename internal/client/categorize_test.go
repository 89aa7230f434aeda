package client

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kjstillabower/island-getaway-service/internal/circuitbreaker"
)

// TestCategorizeError verifies that CategorizeError maps errors to the correct ErrorCategory
// for metrics labeling, including sentinel errors, provider status codes and message heuristics.
func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"timeout context", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"canceled context", context.Canceled, ErrorCategoryTimeout},
		{"circuit open", fmt.Errorf("weather_api: %w", circuitbreaker.ErrOpen), ErrorCategoryCircuitOpen},
		{"rate limited", &WeatherProviderError{StatusCode: 429, Err: ErrRateLimited}, ErrorCategoryRateLimited},
		{"forecast 503", &WeatherProviderError{StatusCode: 503, Err: ErrUpstreamFailure}, ErrorCategoryUpstream5xx},
		{"forecast 400", &WeatherProviderError{StatusCode: 400, Err: ErrUpstreamFailure}, ErrorCategoryUpstream4xx},
		{"wrapped marine 502", fmt.Errorf("fetch: %w", &MarineProviderError{StatusCode: 502, Err: ErrUpstreamFailure}), ErrorCategoryUpstream5xx},
		{"bare upstream failure", ErrUpstreamFailure, ErrorCategoryUpstream5xx},
		{"timeout in message", fmt.Errorf("request timeout: %w", context.DeadlineExceeded), ErrorCategoryTimeout},
		{"network in message", errors.New("connection refused"), ErrorCategoryNetwork},
		{"parse in message", errors.New("parse response: invalid json"), ErrorCategoryParsing},
		{"validation in message", errors.New("invalid island"), ErrorCategoryValidation},
		{"cache in message", errors.New("cache get failed"), ErrorCategoryCache},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeError(tt.err)
			if got != tt.want {
				t.Errorf("CategorizeError() = %v, want %v", got, tt.want)
			}
		})
	}
}
