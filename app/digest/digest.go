// Package digest assembles the daily digest: current weather
// and a positive news article, fetched from two independent upstreams.
package digest

import (
	"context"
	"strings"
	"text/template"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

// WeatherSource provides current weather.
type WeatherSource interface {
	Weather(ctx context.Context) (Weather, error)
}

// NewsSource provides a positive news article, nil means no match.
type NewsSource interface {
	PositiveNews(ctx context.Context) (*News, error)
}

// Assembler fetches weather and news concurrently and renders the digest.
type Assembler struct {
	Logger   *slog.Logger
	Weather  WeatherSource
	News     NewsSource
	Location string
}

// Assemble builds the digest message. It never fails: an upstream that
// returned an error is replaced by a placeholder line.
func (a *Assembler) Assemble(ctx context.Context) string {
	var (
		weather *Weather
		news    *News
	)

	// branches never return errors, so one failing upstream can't cancel the other
	var eg errgroup.Group

	eg.Go(func() error {
		w, err := a.Weather.Weather(ctx)
		if err != nil {
			a.Logger.WarnCtx(ctx, "weather request failed",
				slog.String("kind", FailureKind(err)), slog.Any("err", err))
			return nil
		}
		weather = &w
		return nil
	})

	eg.Go(func() error {
		n, err := a.News.PositiveNews(ctx)
		if err != nil {
			a.Logger.WarnCtx(ctx, "news request failed",
				slog.String("kind", FailureKind(err)), slog.Any("err", err))
			return nil
		}
		news = n
		return nil
	})

	_ = eg.Wait()

	return Render(a.Location, weather, news)
}

var messageTmpl = template.Must(template.New("digest").Parse(
	`Доброе утро ☀️

📍 {{.Location}}
{{- with .Weather}}
🌡 Температура: {{.Temp}}°C
🤍 Ощущается как: {{.FeelsLike}}°C
💧 Влажность: {{.Humidity}}%
🌤 Описание: {{.Description}}
{{- else}}
` + WeatherUnavailable + `
{{- end}}

📰 Хорошая новость дня:
{{- with .News}}
{{.Title}}
{{.Description}}
{{.URL}}
{{- else}}
` + NewsUnavailable + `
{{- end}}`))

// Placeholders for missing facts.
const (
	WeatherUnavailable = "🌡 Погода: временно недоступна (API не ответил или лимит исчерпан)."
	NewsUnavailable    = "Сегодня не удалось получить позитивную новость " +
		"(не найдена или API временно недоступен)."
)

// Render renders the digest, nil weather or news are replaced with placeholders.
func Render(location string, weather *Weather, news *News) string {
	sb := &strings.Builder{}

	err := messageTmpl.Execute(sb, struct {
		Location string
		Weather  *Weather
		News     *News
	}{Location: location, Weather: weather, News: news})
	if err != nil {
		// the template is static and its data is plain strings and ints
		panic("render digest: " + err.Error())
	}

	return sb.String()
}
