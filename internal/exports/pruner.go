package exports

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/justinlawrence/disc-golf-tracker/internal/logging"
)

// Pruner runs Writer.Prune on a cron schedule.
type Pruner struct {
	cron   *cron.Cron
	writer *Writer
	logger *slog.Logger
}

// NewPruner builds a Pruner with a standard 5-field cron spec,
// e.g. "0 3 * * *" for daily at 03:00.
func NewPruner(writer *Writer, spec string, logger *slog.Logger) (*Pruner, error) {
	p := &Pruner{
		cron:   cron.New(),
		writer: writer,
		logger: logger,
	}
	if _, err := p.cron.AddFunc(spec, p.run); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}
	return p, nil
}

// Start begins the schedule. It returns immediately.
func (p *Pruner) Start() {
	p.cron.Start()
	logging.Info(p.logger, "export pruner started")
}

// Stop halts the schedule, waiting for a run in progress.
func (p *Pruner) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
	logging.Info(p.logger, "export pruner stopped")
}

func (p *Pruner) run() {
	if _, err := p.writer.Prune(); err != nil {
		logging.Error(p.logger, "export prune failed", err)
	}
}
