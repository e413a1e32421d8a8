package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/events"
	"github.com/harborview/claims-triage/internal/extract"
	"github.com/harborview/claims-triage/internal/parse"
	"github.com/harborview/claims-triage/internal/pipeline"
	"github.com/harborview/claims-triage/internal/scheduler"
	"github.com/harborview/claims-triage/internal/store"
	"github.com/harborview/claims-triage/internal/tasks"
)

// intakeEnv holds the initialized store, event bus, scheduler, and
// processor needed by the process/serve commands.
type intakeEnv struct {
	Store     store.Store
	Bus       *events.Bus
	Processor *pipeline.Processor
	Scheduler *scheduler.Scheduler // nil in batch mode
	Tasks     *tasks.Manager       // nil when the board is not configured
}

// Close releases resources held by the intake environment.
func (ie *intakeEnv) Close() {
	if ie.Bus != nil {
		ie.Bus.Close()
	}
	if ie.Store != nil {
		_ = ie.Store.Close()
	}
}

// initIntake sets up the store, extraction and parsing collaborators,
// and builds the Processor. withScheduler enables the workflow
// transition scheduler; batch commands leave it off. Callers should
// defer env.Close().
func initIntake(ctx context.Context, withScheduler bool) (*intakeEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	extractor, err := extract.NewExtractor(cfg.Extract)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	parser, err := parse.NewFromConfig(cfg.Parse)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	taskMgr, err := tasks.NewFromConfig(cfg.Tasks)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	var taskCreator pipeline.TaskCreator
	if taskMgr != nil {
		taskCreator = taskMgr
		zap.L().Info("task board integration enabled")
	} else {
		zap.L().Debug("CLAIMS_TASKS_NOTION_TOKEN not set, task board disabled")
	}

	bus := events.NewBus(cfg.Events.SubscriberBuffer)

	var sched *scheduler.Scheduler
	var transitions pipeline.TransitionScheduler
	if withScheduler {
		sched = scheduler.New(st, bus, cfg.Scheduler)
		transitions = sched
	}

	proc := pipeline.New(st, bus, extractor, parser, taskCreator, transitions)

	return &intakeEnv{
		Store:     st,
		Bus:       bus,
		Processor: proc,
		Scheduler: sched,
		Tasks:     taskMgr,
	}, nil
}
