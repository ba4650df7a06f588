package errors_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	choreoerrors "github.com/acmedemos/choreo/pkg/choreo/errors"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want choreoerrors.Category
	}{
		{
			"decode errors are permanent",
			&choreoerrors.DecodeError{Topic: "acmebank/transaction/deposit/v1", EventType: "Transaction", Err: fmt.Errorf("unexpected end of JSON input")},
			choreoerrors.CategoryPermanent,
		},
		{
			"connection errors are transient",
			&choreoerrors.ConnectionError{Host: "localhost:55555", Err: fmt.Errorf("refused")},
			choreoerrors.CategoryTransient,
		},
		{
			"publish errors are transient",
			&choreoerrors.PublishError{Topic: "acmestore/order/created/v1/DE/o-1", Err: fmt.Errorf("backpressure")},
			choreoerrors.CategoryTransient,
		},
		{
			"unknown errors fail safe to permanent",
			fmt.Errorf("boom"),
			choreoerrors.CategoryPermanent,
		},
		{
			"pre-categorized errors keep their category",
			&choreoerrors.CategorizedError{Err: fmt.Errorf("x"), Category: choreoerrors.CategoryTransient},
			choreoerrors.CategoryTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, choreoerrors.Categorize(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("inner")

	var err error = &choreoerrors.DecodeError{EventType: "Order", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "Order")

	err = &choreoerrors.PublishError{Topic: "t", Err: inner}
	assert.ErrorIs(t, err, inner)

	err = &choreoerrors.ConnectionError{Host: "h", Err: inner}
	assert.ErrorIs(t, err, inner)
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	cfg := choreoerrors.RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}

	result := choreoerrors.WithRetry(cfg, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", &choreoerrors.ConnectionError{Host: "h", Err: fmt.Errorf("refused")}
		}
		return "connected", nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, "connected", result.Value)
	assert.Equal(t, 3, result.Attempts)
}

func TestWithRetryStopsOnPermanent(t *testing.T) {
	attempts := 0
	result := choreoerrors.WithRetry(choreoerrors.DefaultRetry, func() (int, error) {
		attempts++
		return 0, &choreoerrors.DecodeError{EventType: "Payment", Err: fmt.Errorf("bad json")}
	})

	require.Error(t, result.Err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	cfg := choreoerrors.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BackoffFactor:  1.5,
	}

	result := choreoerrors.WithRetry(cfg, func() (int, error) {
		return 0, &choreoerrors.ConnectionError{Host: "h", Err: fmt.Errorf("down")}
	})

	require.Error(t, result.Err)
	assert.Equal(t, 3, result.Attempts)

	var catErr *choreoerrors.CategorizedError
	require.ErrorAs(t, result.Err, &catErr)
	assert.Equal(t, choreoerrors.CategoryTransient, catErr.Category)
}

func TestWithRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := choreoerrors.WithRetryContext(ctx, choreoerrors.DefaultRetry, func(context.Context) (int, error) {
		t.Fatal("function should not run with cancelled context")
		return 0, nil
	})

	require.Error(t, result.Err)
	assert.Equal(t, 0, result.Attempts)
}
