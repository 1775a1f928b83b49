package device

import (
	"fmt"
)

// Object is the surface the protocol engine uses to drive an object type.
// Implementations are called from the engine's goroutine only.
type Object interface {
	Transactional

	OID() ObjectID
	Name() string
	Resources() []ResourceDef
	Instances() []InstanceID

	Read(iid InstanceID, rid ResourceID) (Value, error)
	Write(iid InstanceID, rid ResourceID, v Value) error
	Execute(iid InstanceID, rid ResourceID, args string) error
	Reset(iid InstanceID, rid ResourceID) error

	SetNotifier(n Notifier)
}

// Model is a generic object built from a Schema. It combines an instance
// registry, the resource dispatcher and a transaction coordinator. Concrete
// objects embed a Model and add their own instance constructors.
type Model[I any] struct {
	oid      ObjectID
	name     string
	schema   Schema[I]
	registry *Registry[I]
	tx       *TxCoordinator
	notifier Notifier
	logger   Logger
}

// NewModel creates an object with the given id, display name and schema.
// Instances that implement Stager take part in transactions.
func NewModel[I any](oid ObjectID, name string, schema Schema[I]) *Model[I] {
	m := &Model[I]{
		oid:      oid,
		name:     name,
		schema:   schema,
		notifier: nopNotifier{},
		logger:   noopLogger{},
	}
	m.registry = NewRegistry[I](m.notifyInstances)
	m.tx = NewTxCoordinator(m.stagedFields, nil)
	return m
}

// SetNotifier sets the change notification sink. The engine calls this when
// the object is registered.
func (m *Model[I]) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	m.notifier = n
}

// SetLogger sets the logger for the object.
func (m *Model[I]) SetLogger(logger Logger) {
	m.logger = logger
}

// SetValidator installs the transaction validation hook.
func (m *Model[I]) SetValidator(validate func() error) {
	m.tx.SetValidator(validate)
}

// OID returns the object id.
func (m *Model[I]) OID() ObjectID { return m.oid }

// Name returns the object's display name.
func (m *Model[I]) Name() string { return m.name }

// Resources returns the resource descriptors ordered by id.
func (m *Model[I]) Resources() []ResourceDef { return m.schema.Defs() }

// Instances returns the live instance ids in ascending order.
func (m *Model[I]) Instances() []InstanceID { return m.registry.IDs() }

// Instance returns the instance stored under iid.
func (m *Model[I]) Instance(iid InstanceID) (I, bool) { return m.registry.Get(iid) }

// Each calls fn for every instance in ascending id order.
func (m *Model[I]) Each(fn func(InstanceID, I)) { m.registry.Each(fn) }

// AddInstance stores a new instance and raises an instance-set notification.
func (m *Model[I]) AddInstance(candidate InstanceID, build func(InstanceID) (I, error)) (InstanceID, error) {
	return m.registry.Add(candidate, build)
}

// RemoveInstance deletes an instance and raises an instance-set notification.
func (m *Model[I]) RemoveInstance(iid InstanceID) error {
	_, err := m.registry.Remove(iid)
	return err
}

// resolve validates the resource first, then the instance.
func (m *Model[I]) resolve(iid InstanceID, rid ResourceID, op Operation) (Handler[I], I, error) {
	var zero I
	h, ok := m.schema.lookup(rid, op)
	if !ok {
		return Handler[I]{}, zero, fmt.Errorf("%w: %s /%d/%d/%d", ErrUnsupportedResource, op, m.oid, iid, rid)
	}
	inst, ok := m.registry.Get(iid)
	if !ok {
		return Handler[I]{}, zero, fmt.Errorf("%w: /%d/%d", ErrUnknownInstance, m.oid, iid)
	}
	return h, inst, nil
}

// Read returns the current value of a resource.
func (m *Model[I]) Read(iid InstanceID, rid ResourceID) (Value, error) {
	h, inst, err := m.resolve(iid, rid, OpRead)
	if err != nil {
		return Value{}, err
	}
	if h.Read == nil {
		return Value{}, fmt.Errorf("%w: read /%d/%d/%d", ErrUnsupportedOperation, m.oid, iid, rid)
	}
	return h.Read(inst, iid)
}

// Write decodes v to the resource's declared type and applies it.
//
// Local resources are mutated and a change notification is raised.
// Forwarding resources pass the value on and leave local state untouched.
func (m *Model[I]) Write(iid InstanceID, rid ResourceID, v Value) error {
	h, inst, err := m.resolve(iid, rid, OpWrite)
	if err != nil {
		return err
	}
	if h.Write == nil {
		return fmt.Errorf("%w: write /%d/%d/%d", ErrUnsupportedOperation, m.oid, iid, rid)
	}

	decoded, err := v.Coerce(h.Def.Type)
	if err != nil {
		return fmt.Errorf("writing /%d/%d/%d: %w", m.oid, iid, rid, err)
	}
	if err := h.Write(inst, iid, decoded); err != nil {
		return err
	}
	if !h.Forward {
		m.NotifyResourceChanged(iid, rid)
	}
	return nil
}

// Execute runs an executable resource.
func (m *Model[I]) Execute(iid InstanceID, rid ResourceID, args string) error {
	h, inst, err := m.resolve(iid, rid, OpExecute)
	if err != nil {
		return err
	}
	if h.Execute == nil {
		return fmt.Errorf("%w: execute /%d/%d/%d", ErrUnsupportedOperation, m.oid, iid, rid)
	}
	return h.Execute(inst, iid, args)
}

// Reset restores a resource to its default value.
func (m *Model[I]) Reset(iid InstanceID, rid ResourceID) error {
	h, inst, err := m.resolve(iid, rid, OpReset)
	if err != nil {
		return err
	}
	if h.Reset == nil {
		if h.ResetNoop {
			return nil
		}
		return fmt.Errorf("%w: reset /%d/%d/%d", ErrUnsupportedOperation, m.oid, iid, rid)
	}
	if err := h.Reset(inst, iid); err != nil {
		return err
	}
	m.NotifyResourceChanged(iid, rid)
	return nil
}

// TransactionBegin snapshots the staged fields of every instance.
func (m *Model[I]) TransactionBegin() error { return m.tx.Begin() }

// TransactionValidate runs the validation hook.
func (m *Model[I]) TransactionValidate() error { return m.tx.Validate() }

// TransactionCommit discards the snapshots.
func (m *Model[I]) TransactionCommit() error { return m.tx.Commit() }

// TransactionRollback restores the snapshots.
func (m *Model[I]) TransactionRollback() error { return m.tx.Rollback() }

// TransactionState returns the coordinator state.
func (m *Model[I]) TransactionState() TxState { return m.tx.State() }

func (m *Model[I]) stagedFields() StagedSet {
	var set StagedSet
	m.registry.Each(func(_ InstanceID, inst I) {
		if s, ok := any(inst).(Stager); ok {
			set = append(set, s.StagedFields()...)
		}
	})
	return set
}

// NotifyResourceChanged tells the engine a resource changed. Errors are
// logged and swallowed.
func (m *Model[I]) NotifyResourceChanged(iid InstanceID, rid ResourceID) {
	if err := m.notifier.NotifyResourceChanged(m.oid, iid, rid); err != nil {
		m.logger.Warn("resource change notification failed",
			"path", ResourcePath(m.oid, iid, rid).String(),
			"error", err,
		)
	}
}

func (m *Model[I]) notifyInstances() {
	if err := m.notifier.NotifyInstancesChanged(m.oid); err != nil {
		m.logger.Warn("instance set notification failed",
			"object", m.oid,
			"error", err,
		)
	}
}
