package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-agent/internal/device"
	"github.com/nerrad567/gray-logic-agent/internal/infrastructure/metrics"
)

// requestQueueSize bounds the number of submitted requests waiting for the
// event loop.
const requestQueueSize = 64

// Logger defines the logging interface used by the Engine.
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

// NotifySink receives coalesced observations when the engine flushes.
// Calls happen on the event loop goroutine.
type NotifySink interface {
	ResourceChanged(path device.Path, value device.Value)
	InstancesChanged(oid device.ObjectID, instances []device.InstanceID)
}

type result struct {
	resp Response
	err  error
}

type call struct {
	ctx   context.Context
	req   Request
	reply chan result
}

// Engine is the in-process protocol engine. It owns the registered objects'
// request path and the access control store, and collects change
// notifications raised by objects.
//
// Handle and Poll must only be called from the event loop goroutine.
// Register, Submit, the Notify methods and Close are safe from any
// goroutine.
type Engine struct {
	mu          sync.Mutex
	objects     map[device.ObjectID]device.Object
	pending     []device.Path
	pendingSet  map[device.Path]struct{}
	pendingInst []device.ObjectID
	sink        NotifySink

	acl       *AccessControl
	requests  chan *call
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	logger    Logger
}

// New creates an engine with an empty access control store.
func New() *Engine {
	return &Engine{
		objects:    make(map[device.ObjectID]device.Object),
		pendingSet: make(map[device.Path]struct{}),
		acl:        NewAccessControl(),
		requests:   make(chan *call, requestQueueSize),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetSink installs the observation sink. A nil sink drops observations.
func (e *Engine) SetSink(sink NotifySink) {
	e.mu.Lock()
	e.sink = sink
	e.mu.Unlock()
}

// AccessControl returns the engine's access control store.
func (e *Engine) AccessControl() *AccessControl {
	return e.acl
}

// Register installs an object and makes the engine its notifier.
// Returns ErrObjectExists if the object id is taken.
func (e *Engine) Register(obj device.Object) error {
	e.mu.Lock()
	if _, exists := e.objects[obj.OID()]; exists {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrObjectExists, obj.OID())
	}
	e.objects[obj.OID()] = obj
	e.mu.Unlock()

	obj.SetNotifier(e)
	e.logger.Info("object registered", "object", obj.OID(), "name", obj.Name())
	return nil
}

// Object returns the registered object with the given id.
func (e *Engine) Object(oid device.ObjectID) (device.Object, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, ok := e.objects[oid]
	return obj, ok
}

// Objects returns the registered objects ordered by id.
func (e *Engine) Objects() []device.Object {
	e.mu.Lock()
	ids := slices.Sorted(maps.Keys(e.objects))
	out := make([]device.Object, len(ids))
	for i, oid := range ids {
		out[i] = e.objects[oid]
	}
	e.mu.Unlock()
	return out
}

// SetACL sets an access control entry for a registered object.
func (e *Engine) SetACL(oid device.ObjectID, iid device.InstanceID, ssid uint16, mask Mask) error {
	if _, ok := e.Object(oid); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownObject, oid)
	}
	return e.acl.Set(oid, iid, ssid, mask)
}

// NotifyResourceChanged records a changed resource. Repeated notifications
// for the same path before the next flush are coalesced.
func (e *Engine) NotifyResourceChanged(oid device.ObjectID, iid device.InstanceID, rid device.ResourceID) error {
	if e.closed() {
		return ErrEngineClosed
	}
	metrics.RecordNotification("resource")

	path := device.ResourcePath(oid, iid, rid)
	e.mu.Lock()
	if _, dup := e.pendingSet[path]; !dup {
		e.pendingSet[path] = struct{}{}
		e.pending = append(e.pending, path)
	}
	e.mu.Unlock()
	return nil
}

// NotifyInstancesChanged records a change of an object's instance set.
func (e *Engine) NotifyInstancesChanged(oid device.ObjectID) error {
	if e.closed() {
		return ErrEngineClosed
	}
	metrics.RecordNotification("instances")

	e.mu.Lock()
	if !slices.Contains(e.pendingInst, oid) {
		e.pendingInst = append(e.pendingInst, oid)
	}
	e.mu.Unlock()
	return nil
}

// Pending returns the resource paths awaiting the next flush.
func (e *Engine) Pending() []device.Path {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.pending)
}

// Submit queues req for the event loop and waits for the response. It must
// not be called from the event loop goroutine.
//
// A request whose ctx is done before the loop picks it up is dropped
// unhandled. Once the loop has started serving it the request runs to
// completion, even if ctx ends and Submit returns ctx.Err() first.
func (e *Engine) Submit(ctx context.Context, req Request) (Response, error) {
	c := &call{ctx: ctx, req: req, reply: make(chan result, 1)}

	select {
	case e.requests <- c:
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-e.done:
		return Response{}, ErrEngineClosed
	}

	select {
	case r := <-c.reply:
		return r.resp, r.err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-e.done:
		return Response{}, ErrEngineClosed
	}
}

// Wake makes a Poll in progress return early.
func (e *Engine) Wake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Poll is the engine's bounded I/O wait. It blocks until a request arrives,
// Wake is called, ctx is done or timeout elapses, serves every queued
// request and then flushes pending observations to the sink.
//
// Returns:
//   - error: ErrEngineClosed after Close; nil otherwise
func (e *Engine) Poll(ctx context.Context, timeout time.Duration) error {
	if e.closed() {
		return ErrEngineClosed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c := <-e.requests:
		e.serve(c)
		e.drain()
	case <-e.wake:
	case <-timer.C:
	case <-ctx.Done():
	case <-e.done:
		return ErrEngineClosed
	}

	e.Flush()
	return nil
}

// drain serves requests already queued without blocking.
func (e *Engine) drain() {
	for range requestQueueSize {
		select {
		case c := <-e.requests:
			e.serve(c)
		default:
			return
		}
	}
}

func (e *Engine) serve(c *call) {
	if err := c.ctx.Err(); err != nil {
		e.logger.Debug("dropping abandoned request", "op", c.req.Op.String(), "path", c.req.Path.String(), "error", err)
		c.reply <- result{err: err}
		return
	}
	resp, err := e.Handle(c.req)
	c.reply <- result{resp: resp, err: err}
}

// Flush delivers pending observations to the sink. Each changed resource is
// re-read so the sink sees its value at flush time.
func (e *Engine) Flush() {
	e.mu.Lock()
	paths, insts, sink := e.pending, e.pendingInst, e.sink
	e.pending, e.pendingInst = nil, nil
	clear(e.pendingSet)
	e.mu.Unlock()

	if sink == nil {
		return
	}

	for _, oid := range insts {
		if obj, ok := e.Object(oid); ok {
			sink.InstancesChanged(oid, obj.Instances())
		}
	}
	for _, p := range paths {
		obj, ok := e.Object(p.Object)
		if !ok {
			continue
		}
		v, err := obj.Read(p.Instance, p.Resource)
		if err != nil {
			e.logger.Debug("dropping observation", "path", p.String(), "error", err)
			continue
		}
		sink.ResourceChanged(p, v)
	}
}

// Close stops the engine. Poll and Submit return ErrEngineClosed
// afterwards.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

func (e *Engine) closed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Handle executes req synchronously. It must run on the event loop
// goroutine.
func (e *Engine) Handle(req Request) (Response, error) {
	resp, err := e.handle(req)
	metrics.RecordDispatch(strconv.Itoa(int(req.Path.Object)), req.Op.String(), err)
	if err != nil {
		e.logger.Debug("request failed", "op", req.Op.String(), "path", req.Path.String(), "error", err)
	}
	return resp, err
}

func (e *Engine) handle(req Request) (Response, error) {
	if req.Path.Depth() == 0 {
		return Response{}, fmt.Errorf("%w: empty path", ErrInvalidRequest)
	}
	obj, ok := e.Object(req.Path.Object)
	if !ok {
		return Response{}, fmt.Errorf("%w: %d", ErrUnknownObject, req.Path.Object)
	}
	resp := Response{Path: req.Path}

	switch req.Op {
	case OpList:
		resp.Instances = obj.Instances()
		return resp, nil

	case OpDiscover:
		resp.Resources = obj.Resources()
		return resp, nil

	case OpRead:
		if err := e.authorize(req, AccessRead); err != nil {
			return resp, err
		}
		switch req.Path.Depth() {
		case 3:
			v, err := obj.Read(req.Path.Instance, req.Path.Resource)
			resp.Value = v
			return resp, err
		case 2:
			values, err := readInstance(obj, req.Path.Instance)
			resp.Values = values
			return resp, err
		}

	case OpWrite:
		if err := e.authorize(req, AccessWrite); err != nil {
			return resp, err
		}
		switch req.Path.Depth() {
		case 3:
			values := map[device.ResourceID]device.Value{req.Path.Resource: req.Value}
			return resp, writeInstance(obj, req.Path.Instance, values)
		case 2:
			if len(req.Values) == 0 {
				return resp, fmt.Errorf("%w: no values to write", ErrInvalidRequest)
			}
			return resp, writeInstance(obj, req.Path.Instance, req.Values)
		}

	case OpExecute:
		if req.Path.Depth() != 3 {
			break
		}
		if err := e.authorize(req, AccessExecute); err != nil {
			return resp, err
		}
		return resp, obj.Execute(req.Path.Instance, req.Path.Resource, req.Args)

	case OpReset:
		if req.Path.Depth() != 3 {
			break
		}
		if err := e.authorize(req, AccessWrite); err != nil {
			return resp, err
		}
		return resp, obj.Reset(req.Path.Instance, req.Path.Resource)

	default:
		return resp, fmt.Errorf("%w: unknown operation %d", ErrInvalidRequest, req.Op)
	}

	return resp, fmt.Errorf("%w: %s not allowed on %s", ErrInvalidRequest, req.Op, req.Path)
}

func (e *Engine) authorize(req Request, need Mask) error {
	if req.SSID == LocalSSID || req.Path.Depth() < 2 {
		return nil
	}
	if !e.acl.Allowed(req.Path.Object, req.Path.Instance, req.SSID, need) {
		return fmt.Errorf("%w: server %d needs %s on %s", ErrAccessDenied, req.SSID, need, req.Path)
	}
	return nil
}

// readInstance reads every readable resource of one instance. Resources
// without a read function are skipped.
func readInstance(obj device.Object, iid device.InstanceID) ([]ResourceValue, error) {
	if !slices.Contains(obj.Instances(), iid) {
		return nil, fmt.Errorf("%w: /%d/%d", device.ErrUnknownInstance, obj.OID(), iid)
	}

	var out []ResourceValue
	for _, def := range obj.Resources() {
		if !def.Kind.Allows(device.OpRead) {
			continue
		}
		v, err := obj.Read(iid, def.ID)
		if errors.Is(err, device.ErrUnsupportedOperation) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ResourceValue{ID: def.ID, Name: def.Name, Value: v})
	}
	return out, nil
}

// writeInstance applies values to one instance inside a transaction, in
// ascending resource order. Local resources are written and validated
// before any forwarding resource, so a batch that fails sends no command.
func writeInstance(obj device.Object, iid device.InstanceID, values map[device.ResourceID]device.Value) error {
	forwards := make(map[device.ResourceID]bool)
	for _, def := range obj.Resources() {
		if def.Forward {
			forwards[def.ID] = true
		}
	}

	var local, forwarded []device.ResourceID
	for _, rid := range slices.Sorted(maps.Keys(values)) {
		if forwards[rid] {
			forwarded = append(forwarded, rid)
		} else {
			local = append(local, rid)
		}
	}

	return device.WithTransaction(obj, func() error {
		for _, rid := range local {
			if err := obj.Write(iid, rid, values[rid]); err != nil {
				return err
			}
		}
		if len(forwarded) == 0 {
			return nil
		}
		if err := obj.TransactionValidate(); err != nil {
			return err
		}
		for _, rid := range forwarded {
			if err := obj.Write(iid, rid, values[rid]); err != nil {
				return err
			}
		}
		return nil
	})
}
