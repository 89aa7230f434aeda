package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/island-getaway-service/internal/models"
)

func TestRequestCoalescer_GetOrDo_ConcurrentRequests(t *testing.T) {
	coalescer := newRequestCoalescer(5 * time.Second)
	var calls atomic.Int32
	release := make(chan struct{})

	fn := func(ctx context.Context) (models.Forecast, error) {
		calls.Add(1)
		<-release
		return models.Forecast{BeachScore: 90}, nil
	}

	var wg sync.WaitGroup
	results := make([]models.Forecast, 10)
	errs := make([]error, 10)
	shared := make([]bool, 10)
	started := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			started <- struct{}{}
			results[idx], shared[idx], errs[idx] = coalescer.GetOrDo(context.Background(), "aruba", fn)
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-started
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	sharedCount := 0
	for i := range results {
		if errs[i] != nil {
			t.Errorf("request %d error = %v", i, errs[i])
		}
		if results[i].BeachScore != 90 {
			t.Errorf("request %d BeachScore = %d, want 90", i, results[i].BeachScore)
		}
		if shared[i] {
			sharedCount++
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("fn calls = %d, want 1", n)
	}
	if sharedCount != 9 {
		t.Errorf("shared callers = %d, want 9", sharedCount)
	}
}

func TestRequestCoalescer_GetOrDo_ErrorPropagation(t *testing.T) {
	coalescer := newRequestCoalescer(5 * time.Second)
	wantErr := errors.New("upstream failure")

	fn := func(ctx context.Context) (models.Forecast, error) {
		time.Sleep(20 * time.Millisecond)
		return models.Forecast{}, wantErr
	}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, _, errs[idx] = coalescer.GetOrDo(context.Background(), "aruba", fn)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, wantErr) {
			t.Errorf("request %d error = %v, want %v", i, err, wantErr)
		}
	}
}

func TestRequestCoalescer_GetOrDo_CallerCancellation(t *testing.T) {
	coalescer := newRequestCoalescer(time.Second)
	fetchCtxErr := make(chan error, 1)

	fn := func(ctx context.Context) (models.Forecast, error) {
		time.Sleep(100 * time.Millisecond)
		fetchCtxErr <- ctx.Err()
		return models.Forecast{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := coalescer.GetOrDo(ctx, "aruba", fn)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("GetOrDo() error = %v, want context.DeadlineExceeded", err)
	}
	// The shared fetch keeps running after the caller leaves.
	if err := <-fetchCtxErr; err != nil {
		t.Errorf("fetch context error = %v, want nil", err)
	}
}

func TestRequestCoalescer_GetOrDo_DifferentKeys(t *testing.T) {
	coalescer := newRequestCoalescer(5 * time.Second)
	var calls atomic.Int32

	fn := func(ctx context.Context) (models.Forecast, error) {
		calls.Add(1)
		return models.Forecast{}, nil
	}

	var wg sync.WaitGroup
	for _, key := range []string{"aruba", "curacao", "bonaire", "nassau", "jamaica"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, _, _ = coalescer.GetOrDo(context.Background(), key, fn)
		}(key)
	}
	wg.Wait()

	if n := calls.Load(); n != 5 {
		t.Errorf("fn calls = %d, want 5", n)
	}
}
