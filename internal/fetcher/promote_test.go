package fetcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-crawler/internal/review"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) Fetch(ctx context.Context, req review.PageRequest) (review.RawPage, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(review.RawPage), args.Error(1)
}

type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) ShouldPromote(page review.RawPage) bool {
	args := m.Called(page)
	return args.Bool(0)
}

func TestPromoting(t *testing.T) {
	req := review.PageRequest{SourceURL: "https://reviews.example.com/company/acme", Page: 2}
	plain := review.RawPage{URL: "plain", Page: 2, StatusCode: 200, Body: []byte("<div id=\"root\"></div>")}
	rendered := review.RawPage{URL: "rendered", Page: 2, StatusCode: 200, Headless: true}

	t.Run("keeps plain page", func(t *testing.T) {
		primary, headless, detector := new(MockSource), new(MockSource), new(MockDetector)
		primary.On("Fetch", mock.Anything, req).Return(plain, nil)
		detector.On("ShouldPromote", plain).Return(false)

		got, err := NewPromoting(primary, headless, detector, nil).Fetch(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, plain, got)
		headless.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	})

	t.Run("promotes", func(t *testing.T) {
		primary, headless, detector := new(MockSource), new(MockSource), new(MockDetector)
		primary.On("Fetch", mock.Anything, req).Return(plain, nil)
		detector.On("ShouldPromote", plain).Return(true)
		headless.On("Fetch", mock.Anything, req).Return(rendered, nil)

		got, err := NewPromoting(primary, headless, detector, nil).Fetch(context.Background(), req)
		require.NoError(t, err)
		require.True(t, got.Headless)
		headless.AssertExpectations(t)
	})

	t.Run("falls back when headless fails", func(t *testing.T) {
		primary, headless, detector := new(MockSource), new(MockSource), new(MockDetector)
		primary.On("Fetch", mock.Anything, req).Return(plain, nil)
		detector.On("ShouldPromote", plain).Return(true)
		headless.On("Fetch", mock.Anything, req).Return(review.RawPage{}, errors.New("chrome missing"))

		got, err := NewPromoting(primary, headless, detector, nil).Fetch(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, plain, got)
	})

	t.Run("primary failure propagates", func(t *testing.T) {
		primary := new(MockSource)
		primary.On("Fetch", mock.Anything, req).Return(review.RawPage{}, errors.New("timeout"))

		_, err := NewPromoting(primary, nil, nil, nil).Fetch(context.Background(), req)
		require.Error(t, err)
	})
}
