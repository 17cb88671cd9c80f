// Package schedule runs jobs daily at a fixed wall-clock time.
package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Semior001/morningdigest/pkg/logx"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/exp/slog"
)

// Daily describes when a daily job fires.
type Daily struct {
	At   string // HH:MM
	Days string // cron day-of-week field, "*" for every day
}

// Spec returns the cron spec for the daily schedule.
func (d Daily) Spec() (string, error) {
	h, m, err := parseHHMM(d.At)
	if err != nil {
		return "", err
	}

	days := strings.TrimSpace(d.Days)
	if days == "" {
		days = "*"
	}

	spec := fmt.Sprintf("%d %d * * %s", m, h, days)
	if _, err = parser.Parse(spec); err != nil {
		return "", fmt.Errorf("invalid days %q: %w", d.Days, err)
	}

	return spec, nil
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler triggers jobs on cron schedules in a single timezone.
type Scheduler struct {
	log *slog.Logger
	c   *cron.Cron
}

// NewScheduler makes a scheduler firing in the given location.
func NewScheduler(lg *slog.Logger, loc *time.Location) *Scheduler {
	return &Scheduler{
		log: lg,
		c:   cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
	}
}

// AddDaily registers the job. Runs of the same job never overlap,
// a run that is still in progress makes the next one skip.
func (s *Scheduler) AddDaily(ctx context.Context, name string, d Daily, job func(ctx context.Context) error) error {
	spec, err := d.Spec()
	if err != nil {
		return fmt.Errorf("make spec for %s: %w", name, err)
	}

	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		ctx := logx.ContextWithRequestID(ctx, uuid.NewString())
		lg := s.log.With(slog.String("job", name))
		start := time.Now()

		lg.InfoCtx(ctx, "job started")
		if err := job(ctx); err != nil {
			lg.ErrorCtx(ctx, "job failed", slog.Duration("elapsed", time.Since(start)), slog.Any("err", err))
			return
		}
		lg.InfoCtx(ctx, "job finished", slog.Duration("elapsed", time.Since(start)))
	}))

	id, err := s.c.AddJob(spec, wrapped)
	if err != nil {
		return fmt.Errorf("add %s with spec %q: %w", name, spec, err)
	}

	s.log.InfoCtx(ctx, "job scheduled",
		slog.String("job", name),
		slog.String("spec", spec),
		slog.String("tz", s.c.Location().String()),
		slog.Time("next", s.c.Entry(id).Schedule.Next(time.Now().In(s.c.Location()))),
	)

	return nil
}

// Run starts the scheduler and blocks until the context is done,
// then waits for running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.c.Start()
	s.log.InfoCtx(ctx, "scheduler started")

	<-ctx.Done()

	s.log.InfoCtx(ctx, "stopping scheduler, waiting for running jobs")
	<-s.c.Stop().Done()
	s.log.InfoCtx(ctx, "scheduler stopped")
}

func parseHHMM(v string) (h, m int, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", v)
	}

	if h, err = strconv.Atoi(hh); err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", v)
	}

	if m, err = strconv.Atoi(mm); err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", v)
	}

	return h, m, nil
}
