package objects

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-agent/internal/device"
	"github.com/nerrad567/gray-logic-agent/internal/observed"
	"github.com/nerrad567/gray-logic-agent/internal/persistence"
)

// Digital Output object and resource ids.
const (
	OIDDigitalOutput device.ObjectID = 3201

	RIDDigitalOutputState    device.ResourceID = 5550
	RIDDigitalOutputPolarity device.ResourceID = 5551
	RIDApplicationType       device.ResourceID = 5750
)

// CommandForwarder sends an output command to the remote device.
// telemetry.Bridge implements it.
type CommandForwarder interface {
	PublishOutput(on bool) error
}

type outputInstance struct {
	source   observed.Source[bool]
	state    bool
	polarity device.Staged[bool]
	appType  device.Staged[string]
}

func (o *outputInstance) StagedFields() device.StagedSet {
	return device.StagedSet{&o.polarity, &o.appType}
}

// poll copies the source reading into the local state and reports whether it
// changed.
func (o *outputInstance) poll() bool {
	v := o.source.Get()
	if v == o.state {
		return false
	}
	o.state = v
	return true
}

// DigitalOutput is the IPSO Digital Output object (3201).
//
// The output state is owned by the remote device. A write to it is forwarded
// as a downlink command and leaves local state untouched; the new state
// arrives later through the observed source and is picked up on the next
// poll. Polarity and application type are local and take part in
// transactions.
type DigitalOutput struct {
	*device.Model[*outputInstance]

	forwarder CommandForwarder
	modified  atomic.Bool
}

// NewDigitalOutput creates the object. forwarder may be nil, in which case
// writes to the output state fail with ErrNoForwarder.
func NewDigitalOutput(forwarder CommandForwarder) *DigitalOutput {
	d := &DigitalOutput{forwarder: forwarder}
	d.Model = device.NewModel(OIDDigitalOutput, "Digital Output", d.schema())
	return d
}

func (d *DigitalOutput) schema() device.Schema[*outputInstance] {
	return device.Schema[*outputInstance]{
		RIDDigitalOutputState: {
			Def: device.ResourceDef{Name: "Digital Output State", Kind: device.KindRW, Type: device.TypeBool},
			Read: func(o *outputInstance, iid device.InstanceID) (device.Value, error) {
				if o.poll() {
					d.NotifyResourceChanged(iid, RIDDigitalOutputState)
				}
				return device.Bool(o.state), nil
			},
			Forward: true,
			Write: func(_ *outputInstance, _ device.InstanceID, v device.Value) error {
				if d.forwarder == nil {
					return ErrNoForwarder
				}
				on, err := v.AsBool()
				if err != nil {
					return err
				}
				return d.forwarder.PublishOutput(on)
			},
		},
		RIDDigitalOutputPolarity: {
			Def: device.ResourceDef{Name: "Digital Output Polarity", Kind: device.KindRW, Type: device.TypeBool},
			Read: func(o *outputInstance, _ device.InstanceID) (device.Value, error) {
				return device.Bool(o.polarity.Get()), nil
			},
			Write: func(o *outputInstance, _ device.InstanceID, v device.Value) error {
				b, err := v.AsBool()
				if err != nil {
					return err
				}
				o.polarity.Set(b)
				d.modified.Store(true)
				return nil
			},
			Reset: func(o *outputInstance, _ device.InstanceID) error {
				o.polarity.Set(false)
				d.modified.Store(true)
				return nil
			},
		},
		RIDApplicationType: {
			Def: device.ResourceDef{Name: "Application Type", Kind: device.KindRW, Type: device.TypeString},
			Read: func(o *outputInstance, _ device.InstanceID) (device.Value, error) {
				return device.String(o.appType.Get()), nil
			},
			Write: func(o *outputInstance, _ device.InstanceID, v device.Value) error {
				s, err := v.AsString()
				if err != nil {
					return err
				}
				o.appType.Set(s)
				d.modified.Store(true)
				return nil
			},
			Reset: func(o *outputInstance, _ device.InstanceID) error {
				o.appType.Set("")
				d.modified.Store(true)
				return nil
			},
		},
	}
}

// AddInstance creates an output instance polling source. Passing
// device.InstanceIDInvalid picks the lowest free id.
func (d *DigitalOutput) AddInstance(iid device.InstanceID, appType string, source observed.Source[bool]) (device.InstanceID, error) {
	if source == nil {
		return device.InstanceIDInvalid, ErrNoSource
	}
	return d.Model.AddInstance(iid, func(device.InstanceID) (*outputInstance, error) {
		return &outputInstance{
			source:   source,
			state:    source.Get(),
			polarity: device.NewStaged(false),
			appType:  device.NewStaged(appType),
		}, nil
	})
}

// Update polls the source of one instance and raises a notification when the
// output state changed.
func (d *DigitalOutput) Update(iid device.InstanceID) error {
	o, ok := d.Instance(iid)
	if !ok {
		return fmt.Errorf("%w: /%d/%d", device.ErrUnknownInstance, OIDDigitalOutput, iid)
	}
	if o.poll() {
		d.NotifyResourceChanged(iid, RIDDigitalOutputState)
	}
	return nil
}

// UpdateAll polls every instance.
func (d *DigitalOutput) UpdateAll() {
	d.Each(func(iid device.InstanceID, o *outputInstance) {
		if o.poll() {
			d.NotifyResourceChanged(iid, RIDDigitalOutputState)
		}
	})
}

// State returns the last polled output state of an instance.
func (d *DigitalOutput) State(iid device.InstanceID) (bool, bool) {
	o, ok := d.Instance(iid)
	if !ok {
		return false, false
	}
	return o.state, true
}

type outputSnapshot struct {
	Version   int                      `cbor:"version"`
	Instances []outputInstanceSnapshot `cbor:"instances"`
}

type outputInstanceSnapshot struct {
	IID             device.InstanceID `cbor:"iid"`
	Polarity        bool              `cbor:"polarity"`
	ApplicationType string            `cbor:"application_type"`
}

const outputSnapshotVersion = 1

// Persist writes the local settings of every instance to w.
func (d *DigitalOutput) Persist(w io.Writer) error {
	snap := outputSnapshot{Version: outputSnapshotVersion}
	d.Each(func(iid device.InstanceID, o *outputInstance) {
		snap.Instances = append(snap.Instances, outputInstanceSnapshot{
			IID:             iid,
			Polarity:        o.polarity.Get(),
			ApplicationType: o.appType.Get(),
		})
	})

	if err := persistence.Encode(w, snap); err != nil {
		return fmt.Errorf("encoding digital output: %w", err)
	}
	return nil
}

// MarkPersisted clears the modified flag after a snapshot is stored.
func (d *DigitalOutput) MarkPersisted() {
	d.modified.Store(false)
}

// Restore applies settings read from r to the existing instances. Entries
// for instances that do not exist are skipped. On a decode error nothing is
// changed.
func (d *DigitalOutput) Restore(r io.Reader) error {
	var snap outputSnapshot
	if err := persistence.Decode(r, &snap); err != nil {
		return fmt.Errorf("decoding digital output: %w", err)
	}
	if snap.Version != outputSnapshotVersion {
		return fmt.Errorf("%w: digital output version %d", ErrSnapshotVersion, snap.Version)
	}

	for _, s := range snap.Instances {
		o, ok := d.Instance(s.IID)
		if !ok {
			continue
		}
		o.polarity.Set(s.Polarity)
		o.appType.Set(s.ApplicationType)
	}
	d.modified.Store(false)
	return nil
}

// IsModified reports whether local settings changed since they were last
// stored or restored.
func (d *DigitalOutput) IsModified() bool {
	return d.modified.Load()
}
