package digest

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/exp/slog"
)

// Weather is the current weather at the configured location.
type Weather struct {
	Temp        int    // °C, rounded
	FeelsLike   int    // °C, rounded
	Humidity    int    // percent
	Description string // capitalized
}

// WeatherParams defines the fixed query of the weather client.
type WeatherParams struct {
	URL    string
	APIKey string
	Lat    float64
	Lon    float64
	Units  string
	Lang   string
}

// WeatherClient fetches current weather from the OpenWeather API.
type WeatherClient struct {
	log    *slog.Logger
	cl     *http.Client
	params WeatherParams
}

// NewWeatherClient makes new WeatherClient.
func NewWeatherClient(lg *slog.Logger, cl *http.Client, params WeatherParams) *WeatherClient {
	return &WeatherClient{log: lg, cl: cl, params: params}
}

type weatherResponse struct {
	Main *struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Humidity  *float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description *string `json:"description"`
	} `json:"weather"`
}

// Weather returns the current weather.
func (c *WeatherClient) Weather(ctx context.Context) (Weather, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.params.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.params.Lon, 'f', -1, 64))
	q.Set("units", c.params.Units)
	q.Set("lang", c.params.Lang)
	q.Set("appid", c.params.APIKey)

	var resp weatherResponse
	if err := getJSON(ctx, c.log, c.cl, c.params.URL, q, &resp); err != nil {
		return Weather{}, fmt.Errorf("get current weather: %w", err)
	}

	switch {
	case resp.Main == nil:
		return Weather{}, fmt.Errorf("%w: no main section", ErrMalformed)
	case resp.Main.Temp == nil, resp.Main.FeelsLike == nil, resp.Main.Humidity == nil:
		return Weather{}, fmt.Errorf("%w: incomplete main section", ErrMalformed)
	case len(resp.Weather) == 0 || resp.Weather[0].Description == nil:
		return Weather{}, fmt.Errorf("%w: no weather description", ErrMalformed)
	}

	return Weather{
		Temp:        int(math.RoundToEven(*resp.Main.Temp)),
		FeelsLike:   int(math.RoundToEven(*resp.Main.FeelsLike)),
		Humidity:    int(*resp.Main.Humidity),
		Description: capitalize(*resp.Weather[0].Description),
	}, nil
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	rs := []rune(strings.ToLower(s))
	if len(rs) == 0 {
		return ""
	}
	rs[0] = unicode.ToUpper(rs[0])
	return string(rs)
}
