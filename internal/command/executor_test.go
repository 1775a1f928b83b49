package command

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-agent/internal/engine"
	"github.com/nerrad567/gray-logic-agent/internal/objects"
	"github.com/nerrad567/gray-logic-agent/internal/observed"
	"github.com/nerrad567/gray-logic-agent/internal/scheduler"
)

type stubForwarder struct{ sent []bool }

func (f *stubForwarder) PublishOutput(on bool) error {
	f.sent = append(f.sent, on)
	return nil
}

type stubPersister struct {
	calls int
	err   error
}

func (p *stubPersister) PersistAll(context.Context) error {
	p.calls++
	return p.err
}

func newTestEngine(t *testing.T) (*engine.Engine, *stubForwarder) {
	t.Helper()
	eng := engine.New()

	fwd := &stubForwarder{}
	out := objects.NewDigitalOutput(fwd)
	if _, err := out.AddInstance(0, "LED Control", observed.New(false)); err != nil {
		t.Fatalf("AddInstance() error = %v", err)
	}
	temp := objects.NewTemperature()
	if _, err := temp.AddInstance(0, objects.SensorConfig{Units: "Cel", MinRange: -200, MaxRange: 200, Source: observed.New(21.5)}); err != nil {
		t.Fatalf("AddInstance() error = %v", err)
	}

	if err := eng.Register(out); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := eng.Register(temp); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return eng, fwd
}

func run(t *testing.T, x *Executor, line string) error {
	t.Helper()
	cmd, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", line, err)
	}
	return x.Execute(context.Background(), cmd)
}

func TestExecutorReadWrite(t *testing.T) {
	eng, fwd := newTestEngine(t)
	var out bytes.Buffer
	x := NewExecutor(eng, nil, &out)

	if err := run(t, x, "read /3303/0/5700"); err != nil {
		t.Fatalf("read error = %v", err)
	}
	if got := out.String(); got != "/3303/0/5700 = 21.5\n" {
		t.Errorf("read output = %q", got)
	}

	out.Reset()
	if err := run(t, x, "write /3201/0/5550 true"); err != nil {
		t.Fatalf("write error = %v", err)
	}
	if len(fwd.sent) != 1 || !fwd.sent[0] {
		t.Errorf("forwarded = %v, want [true]", fwd.sent)
	}

	out.Reset()
	if err := run(t, x, `write /3201/0 5750="Porch light" 5551=true`); err != nil {
		t.Fatalf("batch write error = %v", err)
	}
	out.Reset()
	if err := run(t, x, "read /3201/0"); err != nil {
		t.Fatalf("read instance error = %v", err)
	}
	if !strings.Contains(out.String(), "/3201/0/5750 Application Type = Porch light") {
		t.Errorf("read instance output = %q", out.String())
	}
}

func TestExecutorListDiscover(t *testing.T) {
	eng, _ := newTestEngine(t)
	var out bytes.Buffer
	x := NewExecutor(eng, nil, &out)

	if err := run(t, x, "list"); err != nil {
		t.Fatalf("list error = %v", err)
	}
	want := "/3201 Digital Output instances=[0]\n/3303 Temperature instances=[0]\n"
	if out.String() != want {
		t.Errorf("list output = %q, want %q", out.String(), want)
	}

	out.Reset()
	if err := run(t, x, "list 3303"); err != nil {
		t.Fatalf("list 3303 error = %v", err)
	}
	if out.String() != "/3303/0\n" {
		t.Errorf("list 3303 output = %q", out.String())
	}

	out.Reset()
	if err := run(t, x, "discover 3201"); err != nil {
		t.Fatalf("discover error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "5550 RW boolean Digital Output State\n") {
		t.Errorf("discover output = %q", out.String())
	}
}

func TestExecutorErrorsSurface(t *testing.T) {
	eng, _ := newTestEngine(t)
	x := NewExecutor(eng, nil, &bytes.Buffer{})

	if err := run(t, x, "read /9999/0/1"); !errors.Is(err, engine.ErrUnknownObject) {
		t.Errorf("read unknown object error = %v", err)
	}
	if err := run(t, x, "exec /3201/0/5550"); err == nil {
		t.Error("exec on a value resource succeeded")
	}
	if err := run(t, x, "persist"); !errors.Is(err, ErrPersistenceDisabled) {
		t.Errorf("persist error = %v, want ErrPersistenceDisabled", err)
	}
}

func TestExecutorACLAndPersist(t *testing.T) {
	eng, _ := newTestEngine(t)
	p := &stubPersister{}
	var out bytes.Buffer
	x := NewExecutor(eng, p, &out)

	if err := run(t, x, "acl 3201 0 1 r"); err != nil {
		t.Fatalf("acl error = %v", err)
	}
	if eng.AccessControl().Allowed(3201, 0, 1, engine.AccessWrite) {
		t.Error("ssid 1 may write after read-only acl")
	}

	// The operator is not subject to access control.
	if err := run(t, x, "write /3201/0/5551 true"); err != nil {
		t.Errorf("operator write error = %v", err)
	}

	if err := run(t, x, "persist"); err != nil {
		t.Fatalf("persist error = %v", err)
	}
	if p.calls != 1 {
		t.Errorf("PersistAll calls = %d, want 1", p.calls)
	}
	p.err = errors.New("disk full")
	if err := run(t, x, "persist"); err == nil {
		t.Error("persist error swallowed")
	}
}

func TestExecutorTaskQuitInterrupts(t *testing.T) {
	eng, _ := newTestEngine(t)
	var out bytes.Buffer
	x := NewExecutor(eng, nil, &out)

	loop := scheduler.New(nil, scheduler.Options{})
	loop.Schedule(x.Task(Command{Verb: VerbHelp}))
	loop.Schedule(x.Task(Command{Verb: VerbQuit}))

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "commands:") || !strings.HasSuffix(out.String(), "bye\n") {
		t.Errorf("output = %q", out.String())
	}
}

// recordingScheduler captures tasks handed over by the feeder.
type recordingScheduler struct {
	mu          sync.Mutex
	tasks       []scheduler.Task
	interrupted bool
}

func (s *recordingScheduler) Schedule(task scheduler.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

func (s *recordingScheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupted = true
}

func TestFeederSchedulesCommandsAndInterruptsAtEOF(t *testing.T) {
	eng, _ := newTestEngine(t)
	var out bytes.Buffer
	x := NewExecutor(eng, nil, &out)
	sched := &recordingScheduler{}

	input := "read /3303/0/5700\n\n# comment\nbogus\nlist\n"
	NewFeeder(strings.NewReader(input), sched, x).Run(context.Background())

	if len(sched.tasks) != 2 {
		t.Errorf("scheduled %d tasks, want 2", len(sched.tasks))
	}
	if !sched.interrupted {
		t.Error("end of input did not interrupt the loop")
	}
	if !strings.Contains(out.String(), "error:") {
		t.Errorf("parse error not reported: %q", out.String())
	}
}

func TestFeederCancelledContextDoesNotInterrupt(t *testing.T) {
	eng, _ := newTestEngine(t)
	x := NewExecutor(eng, nil, &bytes.Buffer{})
	sched := &recordingScheduler{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewFeeder(strings.NewReader(""), sched, x).Run(ctx)

	if sched.interrupted {
		t.Error("cancelled feeder interrupted the loop")
	}
}
