package digest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Semior001/morningdigest/pkg/logx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func testWeatherClient(url string, cl *http.Client) *WeatherClient {
	return NewWeatherClient(slog.New(logx.NoOp()), cl, WeatherParams{
		URL:    url,
		APIKey: "weather-key",
		Lat:    55.7558,
		Lon:    37.6176,
		Units:  "metric",
		Lang:   "ru",
	})
}

func TestWeatherClient_Weather(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "55.7558", q.Get("lat"))
		assert.Equal(t, "37.6176", q.Get("lon"))
		assert.Equal(t, "metric", q.Get("units"))
		assert.Equal(t, "ru", q.Get("lang"))
		assert.Equal(t, "weather-key", q.Get("appid"))

		_, _ = w.Write([]byte(`{
			"weather": [{"id": 800, "main": "Clear", "description": "ЯСНО и тепло"}],
			"main": {"temp": 3.6, "feels_like": -0.5, "humidity": 81, "pressure": 1015}
		}`))
	}))
	defer ts.Close()

	w, err := testWeatherClient(ts.URL, ts.Client()).Weather(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Weather{Temp: 4, FeelsLike: 0, Humidity: 81, Description: "Ясно и тепло"}, w)
}

func TestWeatherClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"cod":429}`, want: ErrRateLimited},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"cod":401}`, want: ErrUpstream},
		{name: "server error", status: http.StatusBadGateway, body: ``, want: ErrUpstream},
		{name: "not json", status: http.StatusOK, body: `not json`, want: ErrMalformed},
		{name: "no main", status: http.StatusOK, body: `{"weather":[{"description":"ясно"}]}`, want: ErrMalformed},
		{name: "no humidity", status: http.StatusOK,
			body: `{"weather":[{"description":"ясно"}],"main":{"temp":1,"feels_like":1}}`, want: ErrMalformed},
		{name: "empty weather", status: http.StatusOK,
			body: `{"weather":[],"main":{"temp":1,"feels_like":1,"humidity":50}}`, want: ErrMalformed},
		{name: "wrong type", status: http.StatusOK,
			body: `{"weather":[{"description":"ясно"}],"main":{"temp":"warm","feels_like":1,"humidity":50}}`,
			want: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			_, err := testWeatherClient(ts.URL, ts.Client()).Weather(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWeatherClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer ts.Close()

	cl := ts.Client()
	cl.Timeout = 10 * time.Millisecond

	_, err := testWeatherClient(ts.URL, cl).Weather(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, "unreachable", FailureKind(err))
	assert.NotContains(t, err.Error(), "weather-key", "api key must not leak into the error")
	assert.NotContains(t, err.Error(), "appid")
	assert.Contains(t, err.Error(), ts.URL)
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Пасмурно", capitalize("пасмурно"))
	assert.Equal(t, "Light rain", capitalize("LIGHT RAIN"))
	assert.Equal(t, "", capitalize(""))
}
