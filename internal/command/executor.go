package command

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/nerrad567/gray-logic-agent/internal/device"
	"github.com/nerrad567/gray-logic-agent/internal/engine"
	"github.com/nerrad567/gray-logic-agent/internal/scheduler"
)

// Engine is the subset of the protocol engine the executor drives.
type Engine interface {
	Handle(req engine.Request) (engine.Response, error)
	Objects() []device.Object
	SetACL(oid device.ObjectID, iid device.InstanceID, ssid uint16, mask engine.Mask) error
}

// Persister saves persistent state on demand.
type Persister interface {
	PersistAll(ctx context.Context) error
}

// Logger defines the logging interface used by the command channel.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Executor runs parsed commands on the loop goroutine and prints results.
type Executor struct {
	engine    Engine
	persister Persister
	logger    Logger

	mu  sync.Mutex
	out io.Writer
}

// NewExecutor creates an executor printing to out. persister may be nil.
func NewExecutor(eng Engine, persister Persister, out io.Writer) *Executor {
	return &Executor{
		engine:    eng,
		persister: persister,
		logger:    noopLogger{},
		out:       out,
	}
}

// SetLogger sets the logger for the executor.
func (x *Executor) SetLogger(logger Logger) {
	x.logger = logger
}

// Task wraps cmd for scheduling on the loop.
func (x *Executor) Task(cmd Command) scheduler.Task {
	return func(ctx context.Context, l *scheduler.Loop) {
		if cmd.Verb == VerbQuit {
			x.printf("bye\n")
			l.Interrupt()
			return
		}
		if err := x.Execute(ctx, cmd); err != nil {
			x.Errorf(err)
		}
	}
}

// Errorf prints an error line. Safe from any goroutine.
func (x *Executor) Errorf(err error) {
	x.printf("error: %v\n", err)
}

func (x *Executor) printf(format string, args ...any) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, err := fmt.Fprintf(x.out, format, args...); err != nil {
		x.logger.Debug("writing command output failed", "error", err)
	}
}

// Execute runs cmd. Operator requests use engine.LocalSSID and are not
// subject to access control. quit is handled by Task.
func (x *Executor) Execute(ctx context.Context, cmd Command) error {
	x.logger.Debug("executing operator command", "verb", cmd.Verb, "path", cmd.Path.String())

	switch cmd.Verb {
	case VerbRead:
		resp, err := x.engine.Handle(engine.Request{Op: engine.OpRead, Path: cmd.Path, SSID: engine.LocalSSID})
		if err != nil {
			return err
		}
		if cmd.Path.Depth() == 3 {
			x.printf("%s = %s\n", cmd.Path, resp.Value)
			return nil
		}
		for _, rv := range resp.Values {
			x.printf("%s/%d %s = %s\n", cmd.Path, rv.ID, rv.Name, rv.Value)
		}
		return nil

	case VerbWrite:
		req := engine.Request{Op: engine.OpWrite, Path: cmd.Path, Value: cmd.Value, Values: cmd.Values, SSID: engine.LocalSSID}
		if _, err := x.engine.Handle(req); err != nil {
			return err
		}
		x.printf("ok\n")
		return nil

	case VerbExec:
		if _, err := x.engine.Handle(engine.Request{Op: engine.OpExecute, Path: cmd.Path, Args: cmd.Args, SSID: engine.LocalSSID}); err != nil {
			return err
		}
		x.printf("ok\n")
		return nil

	case VerbReset:
		if _, err := x.engine.Handle(engine.Request{Op: engine.OpReset, Path: cmd.Path, SSID: engine.LocalSSID}); err != nil {
			return err
		}
		x.printf("ok\n")
		return nil

	case VerbList:
		if cmd.Path.Depth() == 0 {
			for _, obj := range x.engine.Objects() {
				x.printf("/%d %s instances=%v\n", obj.OID(), obj.Name(), obj.Instances())
			}
			return nil
		}
		resp, err := x.engine.Handle(engine.Request{Op: engine.OpList, Path: cmd.Path, SSID: engine.LocalSSID})
		if err != nil {
			return err
		}
		for _, iid := range resp.Instances {
			x.printf("%s/%d\n", cmd.Path, iid)
		}
		return nil

	case VerbDiscover:
		resp, err := x.engine.Handle(engine.Request{Op: engine.OpDiscover, Path: cmd.Path, SSID: engine.LocalSSID})
		if err != nil {
			return err
		}
		for _, def := range resp.Resources {
			x.printf("%d %s %s %s\n", def.ID, def.Kind, def.Type, def.Name)
		}
		return nil

	case VerbACL:
		if err := x.engine.SetACL(cmd.Path.Object, cmd.Path.Instance, cmd.SSID, cmd.Mask); err != nil {
			return err
		}
		x.printf("ok\n")
		return nil

	case VerbPersist:
		if x.persister == nil {
			return ErrPersistenceDisabled
		}
		if err := x.persister.PersistAll(ctx); err != nil {
			return err
		}
		x.printf("ok\n")
		return nil

	case VerbHelp:
		x.printf("%s\n", Usage)
		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Verb)
}
