package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/fitprogram-backend/internal/platform/logger"
	"github.com/yungbote/fitprogram-backend/internal/temporalx"
	"github.com/yungbote/fitprogram-backend/internal/temporalx/reassessment"
)

// Registrar is the registration surface shared by worker.Worker and the
// workflow test environment.
type Registrar interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register wires the reassessment workflows and activity onto r.
func Register(r Registrar, acts *reassessment.Activities) {
	r.RegisterWorkflowWithOptions(reassessment.Workflow, workflow.RegisterOptions{Name: reassessment.WorkflowName})
	r.RegisterWorkflowWithOptions(reassessment.CadenceWorkflow, workflow.RegisterOptions{Name: reassessment.CadenceWorkflowName})
	r.RegisterActivityWithOptions(acts.RunCycle, activity.RegisterOptions{Name: reassessment.ActivityRunCycle})
}

type Runner struct {
	log  *logger.Logger
	tc   temporalsdkclient.Client
	cfg  temporalx.Config
	acts *reassessment.Activities
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, acts *reassessment.Activities) (*Runner, error) {
	if tc == nil {
		return nil, errors.New("temporal client is not configured")
	}
	if acts == nil || acts.Cycles == nil {
		return nil, errors.New("temporal worker missing reassessment activities")
	}
	return &Runner{log: log.With("component", "TemporalWorker"), tc: tc, cfg: cfg, acts: acts}, nil
}

// Start polls the task queue until ctx is done. Startup is retried with
// backoff while the namespace or server is not ready yet.
func (r *Runner) Start(ctx context.Context) error {
	r.log.Info("starting temporal worker", "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)

	deadline := time.Now().Add(r.cfg.DialMaxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
			MaxConcurrentActivityExecutionSize:     r.cfg.WorkerConcurrency,
			MaxConcurrentWorkflowTaskExecutionSize: r.cfg.WorkerConcurrency,
		})
		Register(w, r.acts)

		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var missing *serviceerror.NamespaceNotFound
		if errors.As(startErr, &missing) && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.log, r.cfg); err != nil {
				r.log.Warn("temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}
		if r.cfg.DialMaxWait <= 0 || time.Now().After(deadline) {
			return fmt.Errorf("temporal worker start (namespace=%s task_queue=%s): %w", r.cfg.Namespace, r.cfg.TaskQueue, startErr)
		}
		r.log.Warn("temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(r.cfg, attempt)):
		}
	}
}

func backoff(cfg temporalx.Config, attempt int) time.Duration {
	d := cfg.DialBackoff
	if d <= 0 {
		d = 250 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if cfg.DialBackoffMax > 0 && d >= cfg.DialBackoffMax {
			return cfg.DialBackoffMax
		}
	}
	return d
}
