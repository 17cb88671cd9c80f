package digest

import (
	"context"
	"sync/atomic"
)

// WeatherSourceMock is a mock implementation of WeatherSource.
type WeatherSourceMock struct {
	WeatherFunc func(ctx context.Context) (Weather, error)
	calls       int32
}

// Weather calls WeatherFunc.
func (m *WeatherSourceMock) Weather(ctx context.Context) (Weather, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.WeatherFunc(ctx)
}

// WeatherCalls returns the number of calls made to Weather.
func (m *WeatherSourceMock) WeatherCalls() int { return int(atomic.LoadInt32(&m.calls)) }

// NewsSourceMock is a mock implementation of NewsSource.
type NewsSourceMock struct {
	PositiveNewsFunc func(ctx context.Context) (*News, error)
	calls            int32
}

// PositiveNews calls PositiveNewsFunc.
func (m *NewsSourceMock) PositiveNews(ctx context.Context) (*News, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.PositiveNewsFunc(ctx)
}

// PositiveNewsCalls returns the number of calls made to PositiveNews.
func (m *NewsSourceMock) PositiveNewsCalls() int { return int(atomic.LoadInt32(&m.calls)) }
