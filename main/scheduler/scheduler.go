package scheduler

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"lumigente_backend/main/logger"
	"lumigente_backend/main/metrics"
)

// Config mirrors scheduler.yaml: categories of services, each one a job.
type Config struct {
	Categories []Category `yaml:"categories_cron"`
}

type Category struct {
	Name     string `yaml:"name_category"`
	Services []Job  `yaml:"services_cron"`
}

type Job struct {
	Name            string  `yaml:"name_cron"`
	Task            string  `yaml:"task_cron"`
	IntervalSeconds float64 `yaml:"interval_seconds"`
	Status          bool    `yaml:"status_cron"`
	AtTime          string  `yaml:"at_time_cron"`
}

// Task is one unit of background work. Errors are logged and counted.
type Task func(ctx context.Context) error

type Scheduler struct {
	cron   gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// New registers every enabled job of cfg. A job naming a task missing from
// tasks is a configuration error.
func New(cfg Config, tasks map[string]Task, opts ...gocron.SchedulerOption) (*Scheduler, error) {
	if len(cfg.Categories) == 0 {
		return nil, fmt.Errorf("scheduler config has no categories_cron")
	}

	cron, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: cron, ctx: ctx, cancel: cancel}

	log := logger.L().Named("scheduler")
	for _, category := range cfg.Categories {
		for _, job := range category.Services {
			fullName := fmt.Sprintf("%s > %s", category.Name, job.Name)

			if !job.Status {
				log.Info("job disabled, skipping", zap.String("job", fullName))
				continue
			}

			task, ok := tasks[job.Task]
			if !ok {
				s.abort()
				return nil, fmt.Errorf("job %q: unknown task %q", fullName, job.Task)
			}

			definition, err := definitionFor(job)
			if err != nil {
				s.abort()
				return nil, fmt.Errorf("job %q: %w", fullName, err)
			}

			_, err = cron.NewJob(
				definition,
				gocron.NewTask(s.run, fullName, job.Task, task),
				gocron.WithName(fullName),
				gocron.WithSingletonMode(gocron.LimitModeReschedule),
			)
			if err != nil {
				s.abort()
				return nil, err
			}
			log.Info("job registered",
				zap.String("job", fullName),
				zap.String("task", job.Task),
				zap.String("at", job.AtTime),
				zap.Float64("interval_seconds", job.IntervalSeconds),
			)
		}
	}
	return s, nil
}

// definitionFor picks a daily job when at_time_cron is set, a fixed interval
// otherwise.
func definitionFor(job Job) (gocron.JobDefinition, error) {
	if job.AtTime != "" {
		h, m, sec, err := parseClock(job.AtTime)
		if err != nil {
			return nil, fmt.Errorf("at_time_cron: %w", err)
		}
		return gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(h, m, sec))), nil
	}
	if job.IntervalSeconds <= 0 {
		return nil, fmt.Errorf("interval_seconds must be greater than 0")
	}
	return gocron.DurationJob(time.Duration(job.IntervalSeconds * float64(time.Second))), nil
}

// track registers a running task unless Shutdown already started waiting.
func (s *Scheduler) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Scheduler) run(fullName, taskName string, task Task) {
	if !s.track() {
		return
	}
	defer s.wg.Done()

	log := logger.L().Named("scheduler")
	defer func() {
		if r := recover(); r != nil {
			metrics.SchedulerJobRuns.WithLabelValues(taskName, "error").Inc()
			log.Error("job panicked", zap.String("job", fullName), zap.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := task(s.ctx); err != nil {
		metrics.SchedulerJobRuns.WithLabelValues(taskName, "error").Inc()
		log.Error("job failed", zap.String("job", fullName), zap.Error(err))
		return
	}
	metrics.SchedulerJobRuns.WithLabelValues(taskName, "success").Inc()
	log.Debug("job finished", zap.String("job", fullName), zap.Duration("took", time.Since(start)))
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Jobs lists the registered job names.
func (s *Scheduler) Jobs() []string {
	out := []string{}
	for _, j := range s.cron.Jobs() {
		out = append(out, j.Name())
	}
	return out
}

// Shutdown cancels running tasks and waits for them to return.
func (s *Scheduler) Shutdown() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	err := s.cron.Shutdown()
	s.wg.Wait()
	return err
}

func (s *Scheduler) abort() {
	s.cancel()
	_ = s.cron.Shutdown()
}

// parseClock reads HH:MM or HH:MM:SS.
func parseClock(value string) (uint, uint, uint, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	limits := []int{23, 59, 59}
	out := [3]uint{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, 0, 0, fmt.Errorf("expected HH:MM, got %q", value)
		}
		out[i] = uint(n)
	}
	return out[0], out[1], out[2], nil
}
