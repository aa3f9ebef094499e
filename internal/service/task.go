package service

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	"pve-cloner/internal/domain"
	"pve-cloner/internal/logger"
	"pve-cloner/internal/output"
)

const (
	PollInterval       = time.Second
	DefaultTaskTimeout = 1200 * time.Second
)

type TaskPoller struct {
	log      *logger.Logger
	api      API
	sink     output.Sink
	clock    clock.Clock
	interval time.Duration
}

func NewTaskPoller(api API, sink output.Sink, clk clock.Clock) *TaskPoller {
	return &TaskPoller{
		log:      logger.NewLogger("TaskPoller"),
		api:      api,
		sink:     sink,
		clock:    clk,
		interval: PollInterval,
	}
}

// Await polls task until it stops. It returns nil when the task exited OK,
// a task-failed Failure carrying the exit status otherwise, and a timeout
// Failure when the task is still running after timeout.
func (p *TaskPoller) Await(ctx context.Context, task domain.TaskHandle, timeout time.Duration) error {
	log := p.log.With("upid", task.UPID)
	start := p.clock.Now()

	for p.clock.Since(start) < timeout {
		status, err := p.api.GetTaskStatus(ctx, task)
		if err != nil {
			log.Error("Failed to get task status: %v", err)
			p.sink.Error("Failed to get task status: %v", err)
			return domain.NewFailure(domain.FailureRemote, "task status", err)
		}

		if status.Done() {
			if status.Succeeded() {
				log.Debug("Task finished OK after %s", p.clock.Since(start))
				return nil
			}

			p.sink.Error("Task failed with status: %s", status.ExitStatus)
			return domain.NewFailure(domain.FailureTask, status.ExitStatus, nil)
		}

		if status.IsClone() {
			p.showProgress(ctx, task)
		}

		p.clock.Sleep(p.interval)
	}

	p.sink.Error("Timeout waiting for task completion")
	return domain.NewFailure(domain.FailureTimeout, timeout.String(), nil)
}

// showProgress prints the latest task log line. Errors are ignored: the log
// is cosmetic and must never end the polling loop.
func (p *TaskPoller) showProgress(ctx context.Context, task domain.TaskHandle) {
	line, err := p.api.GetTaskLogTail(ctx, task)
	if err != nil {
		p.log.Debug("Ignoring task log error for %s: %v", task, err)
		return
	}

	if line != "" {
		p.sink.Progress("%s", line)
	}
}
