package device

// Logger defines the logging interface used by the device runtime.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Notifier receives change notifications from objects. It is implemented by
// the protocol engine, which is responsible for coalescing them into
// observations.
//
// Notifications are raised synchronously at the point of mutation, once per
// mutation, and never while a registry lock is held. A returned error is
// logged by the caller and otherwise ignored: a lost notification is repaired
// by the next observation cycle.
type Notifier interface {
	NotifyResourceChanged(oid ObjectID, iid InstanceID, rid ResourceID) error
	NotifyInstancesChanged(oid ObjectID) error
}

// nopNotifier discards notifications. Objects use it until the engine
// registers them.
type nopNotifier struct{}

func (nopNotifier) NotifyResourceChanged(ObjectID, InstanceID, ResourceID) error { return nil }
func (nopNotifier) NotifyInstancesChanged(ObjectID) error                      { return nil }

// NotifierFuncs adapts two plain functions to Notifier. Nil fields are
// treated as no-ops.
type NotifierFuncs struct {
	Resource  func(oid ObjectID, iid InstanceID, rid ResourceID) error
	Instances func(oid ObjectID) error
}

// NotifyResourceChanged calls f.Resource.
func (f NotifierFuncs) NotifyResourceChanged(oid ObjectID, iid InstanceID, rid ResourceID) error {
	if f.Resource == nil {
		return nil
	}
	return f.Resource(oid, iid, rid)
}

// NotifyInstancesChanged calls f.Instances.
func (f NotifierFuncs) NotifyInstancesChanged(oid ObjectID) error {
	if f.Instances == nil {
		return nil
	}
	return f.Instances(oid)
}
