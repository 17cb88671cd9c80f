// Package cmd contains commands for the application.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Semior001/morningdigest/app/bot"
	"github.com/Semior001/morningdigest/app/broadcast"
	"github.com/Semior001/morningdigest/app/digest"
	"github.com/Semior001/morningdigest/app/schedule"
	"github.com/Semior001/morningdigest/app/store"
	"github.com/Semior001/morningdigest/pkg/botx"
	"github.com/Semior001/morningdigest/pkg/botx/botapi"
	"github.com/Semior001/morningdigest/pkg/logx"
	"github.com/go-pkgz/requester"
	"github.com/go-pkgz/requester/middleware"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Run is a command to run the bot.
type Run struct {
	Bot struct {
		Timeout  time.Duration `long:"timeout" env:"TIMEOUT" default:"1m" description:"timeout for handling a command"`
		AdminIDs []int64       `long:"admin-ids" env:"ADMIN_IDS" env-delim:"," description:"admin chat IDs"`
	} `group:"bot" namespace:"bot" env-namespace:"BOT"`

	Telegram struct {
		Token string `long:"token" env:"TOKEN" description:"telegram bot token"`
	} `group:"telegram" namespace:"telegram" env-namespace:"TELEGRAM"`

	Weather struct {
		APIKey string  `long:"api-key" env:"API_KEY" description:"OpenWeather API key"`
		URL    string  `long:"url" env:"URL" default:"https://api.openweathermap.org/data/2.5/weather" description:"current weather endpoint"`
		Lat    float64 `long:"lat" env:"LAT" default:"55.7558" description:"latitude of the location"`
		Lon    float64 `long:"lon" env:"LON" default:"37.6176" description:"longitude of the location"`
		Units  string  `long:"units" env:"UNITS" default:"metric" description:"unit system"`
		Lang   string  `long:"lang" env:"LANG" default:"ru" description:"language of the weather description"`
	} `group:"weather" namespace:"weather" env-namespace:"OPENWEATHER"`

	News struct {
		APIKey         string `long:"api-key" env:"API_KEY" description:"NewsAPI key"`
		URL            string `long:"url" env:"URL" default:"https://newsapi.org/v2/everything" description:"news search endpoint"`
		Query          string `long:"query" env:"QUERY" default:"good OR positive OR inspiring OR breakthrough OR success" description:"search query"`
		Language       string `long:"language" env:"LANGUAGE" default:"en" description:"language of articles"`
		SortBy         string `long:"sort-by" env:"SORT_BY" default:"popularity" description:"sort order of articles"`
		PageSize       int    `long:"page-size" env:"PAGE_SIZE" default:"20" description:"amount of articles to look through"`
		MaxDescription int    `long:"max-description" env:"MAX_DESCRIPTION" default:"260" description:"max description length"`
	} `group:"news" namespace:"news" env-namespace:"NEWS"`

	Broadcast struct {
		At       string `long:"at" env:"AT" default:"09:00" description:"local time of the daily digest, HH:MM"`
		Timezone string `long:"timezone" env:"TIMEZONE" default:"Europe/Moscow" description:"timezone of the daily digest"`
		Days     string `long:"days" env:"DAYS" default:"*" description:"cron day-of-week field, e.g. MON-FRI"`
		Workers  int    `long:"workers" env:"WORKERS" default:"4" description:"amount of parallel deliveries"`
		Rate     int    `long:"rate" env:"RATE" default:"25" description:"max messages per second, 0 to disable"`
	} `group:"broadcast" namespace:"broadcast" env-namespace:"BROADCAST"`

	Store struct {
		Path   string `long:"path" env:"PATH" default:"subscribers.json" description:"subscribers file"`
		Engine string `long:"engine" env:"ENGINE" default:"json" choice:"json" choice:"bolt" description:"subscribers storage engine"`
	} `group:"store" namespace:"store" env-namespace:"STORE"`

	Location string        `long:"location" env:"LOCATION" default:"Москва" description:"location name shown in the digest"`
	Timeout  time.Duration `long:"timeout" env:"TIMEOUT" default:"15s" description:"timeout for upstream requests"`
	TodayTTL time.Duration `long:"today-ttl" env:"TODAY_TTL" default:"10m" description:"how long /today reuses the assembled digest"`
}

// ErrConfigurationMissing is returned when a required option is not set.
var ErrConfigurationMissing = errors.New("missing required configuration")

// Validate checks that all required options are set.
func (r Run) Validate() error {
	var missing []string
	if r.Telegram.Token == "" {
		missing = append(missing, "TELEGRAM_TOKEN")
	}
	if r.Weather.APIKey == "" {
		missing = append(missing, "OPENWEATHER_API_KEY")
	}
	if r.News.APIKey == "" {
		missing = append(missing, "NEWS_API_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigurationMissing, strings.Join(missing, ", "))
	}

	return nil
}

// Execute runs the command.
func (r Run) Execute(_ []string) error {
	if err := r.Validate(); err != nil {
		return err
	}

	lg := slog.Default()

	loc, err := time.LoadLocation(r.Broadcast.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", r.Broadcast.Timezone, err)
	}

	daily := schedule.Daily{At: r.Broadcast.At, Days: r.Broadcast.Days}
	if _, err = daily.Spec(); err != nil {
		return fmt.Errorf("check broadcast schedule: %w", err)
	}

	storage, closeStorage, err := r.makeStorage()
	if err != nil {
		return fmt.Errorf("make subscribers storage: %w", err)
	}
	defer func() {
		if err := closeStorage(); err != nil {
			lg.Error("close subscribers storage", slog.Any("err", err))
		}
	}()

	subs := store.NewRegistry(lg.With(slog.String("prefix", "store")), storage)
	subs.Load(context.Background())

	assembler := r.makeAssembler(lg)

	api, err := botapi.NewTelegram(
		lg.With(slog.String("prefix", "telegram")),
		r.Telegram.Token,
		100,
	)
	if err != nil {
		return fmt.Errorf("make telegram controller: %w", err)
	}

	ctrl := &bot.Ctrl{
		Logger:         lg.With(slog.String("prefix", "bot")),
		Subscribers:    subs,
		Digest:         digest.NewCached(assembler, r.TodayTTL),
		API:            api,
		AdminIDs:       r.Bot.AdminIDs,
		HandlerTimeout: r.Bot.Timeout,
		Schedule:       fmt.Sprintf("%s (%s)", r.Broadcast.At, loc.String()),
	}

	job := &broadcast.Job{
		Logger:      lg.With(slog.String("prefix", "digest-job")),
		Subscribers: subs,
		Assembler:   assembler,
		Dispatcher: &broadcast.Dispatcher{
			Logger:  lg.With(slog.String("prefix", "dispatcher")),
			API:     api,
			Workers: r.Broadcast.Workers,
			Limiter: makeLimiter(r.Broadcast.Rate),
		},
	}

	b := botx.NewBot(
		ctrl.Routes().Handle,
		api,
		botx.WithLogger(lg.With(slog.String("prefix", "botx"))),
		botx.WithWorkers(10),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	sched := schedule.NewScheduler(lg.With(slog.String("prefix", "scheduler")), loc)
	if err = sched.AddDaily(ctx, "daily_digest", daily, job.Run); err != nil {
		return fmt.Errorf("schedule daily digest: %w", err)
	}

	if err := ctrl.NotifyAdmins(context.Background(), "bot started"); err != nil {
		lg.Warn("notify admins about started bot", slog.Any("err", err))
	}

	ewg, ctx := errgroup.WithContext(ctx)
	ewg.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
		select {
		case sig := <-sig:
			slog.Warn("caught signal, stopping", slog.String("signal", sig.String()))
			stop()
			return ctx.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	ewg.Go(func() error {
		lg.Info("starting bot")
		b.Run(ctx)
		lg.Warn("bot stopped")
		return nil
	})
	ewg.Go(func() error {
		sched.Run(ctx)
		return nil
	})

	// we should run api out of errgroup, because it lives longer than the context,
	// as we want to notify admins about bot stopping
	apiStopped := make(chan struct{})
	go func() {
		lg.Info("starting telegram api")
		api.Run()
		lg.Warn("telegram api stopped listening for updates")
		close(apiStopped)
	}()

	err = ewg.Wait()

	msg := "bot stopped"
	if err != nil && !errors.Is(err, context.Canceled) {
		msg = fmt.Sprintf("bot stopped with error: %v", err)
	}
	if sendErr := ctrl.NotifyAdmins(context.Background(), msg); sendErr != nil {
		lg.Warn("notify admins about stopped bot", slog.Any("err", sendErr))
	}

	lg.Info("stopping telegram api")
	api.Stop()
	<-apiStopped
	lg.Info("telegram api stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (r Run) makeStorage() (store.Storage, func() error, error) {
	switch r.Store.Engine {
	case "bolt":
		b, err := store.NewBolt(r.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt: %w", err)
		}
		return b, b.Close, nil
	default:
		return store.NewJSONFile(r.Store.Path), func() error { return nil }, nil
	}
}

func (r Run) makeAssembler(lg *slog.Logger) *digest.Assembler {
	rq := requester.New(
		http.Client{Timeout: r.Timeout},
		middleware.Header("Accept", "application/json"),
		logx.LoggingRoundTripper(lg.With(slog.String("prefix", "upstream")), logx.RoundTripperOpts{
			Level:         slog.LevelDebug,
			SecretHeaders: []string{"X-Api-Key", "Authorization"},
			SecretParams:  []string{"appid", "apiKey"},
		}),
	)

	return &digest.Assembler{
		Logger: lg.With(slog.String("prefix", "digest")),
		Weather: digest.NewWeatherClient(
			lg.With(slog.String("prefix", "weather")),
			rq.Client(),
			digest.WeatherParams{
				URL:    r.Weather.URL,
				APIKey: r.Weather.APIKey,
				Lat:    r.Weather.Lat,
				Lon:    r.Weather.Lon,
				Units:  r.Weather.Units,
				Lang:   r.Weather.Lang,
			},
		),
		News: digest.NewNewsClient(
			lg.With(slog.String("prefix", "news")),
			rq.Client(),
			digest.NewsParams{
				URL:            r.News.URL,
				APIKey:         r.News.APIKey,
				Query:          r.News.Query,
				Language:       r.News.Language,
				SortBy:         r.News.SortBy,
				PageSize:       r.News.PageSize,
				MaxDescription: r.News.MaxDescription,
			},
		),
		Location: r.Location,
	}
}

func makeLimiter(perSec int) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	// burst equals the rate, so a small broadcast goes out at once
	return rate.NewLimiter(rate.Limit(perSec), perSec)
}
