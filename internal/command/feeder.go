package command

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/muesli/cancelreader"

	"github.com/nerrad567/gray-logic-agent/internal/scheduler"
)

// Scheduler is the loop surface the feeder hands work to.
type Scheduler interface {
	Schedule(task scheduler.Task)
	Interrupt()
}

// Feeder reads operator input on its own goroutine.
type Feeder struct {
	in     io.Reader
	loop   Scheduler
	exec   *Executor
	logger Logger
}

// NewFeeder creates a feeder reading lines from in.
func NewFeeder(in io.Reader, loop Scheduler, exec *Executor) *Feeder {
	return &Feeder{in: in, loop: loop, exec: exec, logger: noopLogger{}}
}

// SetLogger sets the logger for the feeder.
func (f *Feeder) SetLogger(logger Logger) {
	f.logger = logger
}

// Run reads until end of input or until ctx is cancelled. Parse errors are
// printed and the line is skipped. End of input interrupts the loop; a
// cancelled ctx does not.
//
// When in is a terminal or pipe, a blocked read is cancelled with ctx so the
// loop can join this goroutine.
func (f *Feeder) Run(ctx context.Context) {
	cr, err := cancelreader.NewReader(f.in)
	if err != nil {
		// Regular files cannot be polled; read them without cancellation.
		f.logger.Debug("operator input not pollable", "error", err)
		cr, err = cancelreader.NewReader(struct{ io.Reader }{f.in})
		if err != nil {
			f.logger.Error("operator input unavailable", "error", err)
			f.loop.Interrupt()
			return
		}
	}
	defer cr.Close()

	stop := context.AfterFunc(ctx, func() {
		if !cr.Cancel() {
			f.logger.Debug("operator input read cannot be cancelled")
		}
	})
	defer stop()

	scanner := bufio.NewScanner(cr)
	for scanner.Scan() {
		line := scanner.Text()
		if isBlank(line) {
			continue
		}
		cmd, err := Parse(line)
		if err != nil {
			f.exec.Errorf(err)
			continue
		}
		f.loop.Schedule(f.exec.Task(cmd))
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, cancelreader.ErrCanceled) {
		f.logger.Warn("reading operator input failed", "error", err)
	}
	if ctx.Err() != nil {
		return
	}
	f.logger.Info("operator input closed, stopping")
	f.loop.Interrupt()
}

func isBlank(line string) bool {
	word, _ := cut(line)
	return word == "" || word[0] == '#'
}
