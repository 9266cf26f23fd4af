package smoke

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/pkg/logger"
)

type outcome struct {
	status   model.TaskStatus
	rejected bool
	stuck    bool
	errs     []string
}

// Run submits cfg.Count async analyses, follows each to a terminal state and
// verifies the lifecycle the service reports along the way.
func Run(ctx context.Context, cfg *Config, c *Client) (Stats, error) {
	start := time.Now()
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	log.Info(ctx, "starting smoke run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("count", cfg.Count),
		logger.Int("workers", cfg.Workers),
		logger.String("mediaType", string(cfg.MediaType)))

	if err := c.Health(ctx); err != nil {
		return Stats{}, fmt.Errorf("service health check failed: %w", err)
	}

	reqs := generateRequests(cfg)
	jobs := make(chan model.TaskRequest, cfg.Workers)
	results := make(chan outcome, len(reqs))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				results <- follow(ctx, cfg, c, log, req)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, r := range reqs {
			select {
			case <-ctx.Done():
				return
			case jobs <- r:
			}
		}
	}()

	wg.Wait()
	close(results)

	var st Stats
	for o := range results {
		switch {
		case o.rejected:
			st.Rejected++
			continue
		case o.stuck:
			st.Stuck++
		case o.status == model.TaskCompleted:
			st.Completed++
		case o.status == model.TaskFailed:
			st.Failed++
		}
		st.Submitted++
		st.Violations = append(st.Violations, o.errs...)
	}
	st.Duration = time.Since(start)

	log.Info(ctx, "smoke run finished",
		logger.Int("submitted", st.Submitted),
		logger.Int("rejected", st.Rejected),
		logger.Int("completed", st.Completed),
		logger.Int("failed", st.Failed),
		logger.Int("stuck", st.Stuck),
		logger.Int("violations", len(st.Violations)),
		logger.Duration("duration", st.Duration))
	for _, v := range st.Violations {
		log.Warn(ctx, "lifecycle violation", logger.String("detail", v))
	}

	if err := ctx.Err(); err != nil {
		return st, err
	}
	return st, nil
}

// follow submits one request and polls it until it settles or the deadline passes.
func follow(ctx context.Context, cfg *Config, c *Client, log logger.Logger, req model.TaskRequest) outcome {
	ctx, cancel := context.WithTimeout(ctx, cfg.Deadline)
	defer cancel()

	id, err := c.Submit(ctx, req)
	if err != nil {
		if errors.Is(err, ErrBackpressure) {
			return outcome{rejected: true}
		}
		return outcome{stuck: true, errs: []string{"submit: " + err.Error()}}
	}

	obs := &observer{id: id}
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		t, err := c.Task(ctx, id)
		switch {
		case err == nil:
			obs.observe(t)
			if t.Status.Terminal() {
				if cfg.Verbose {
					log.Debug(ctx, "task settled",
						logger.String("id", id),
						logger.String("status", string(t.Status)))
				}
				return outcome{status: t.Status, errs: obs.errs}
			}
		case ctx.Err() == nil:
			obs.violate("poll: %v", err)
		}

		select {
		case <-ctx.Done():
			obs.violate("did not settle within %s", cfg.Deadline)
			return outcome{stuck: true, errs: obs.errs}
		case <-ticker.C:
		}
	}
}
