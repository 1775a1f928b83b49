package objects

import (
	"fmt"

	"github.com/nerrad567/gray-logic-agent/internal/device"
	"github.com/nerrad567/gray-logic-agent/internal/observed"
)

// Three-axis sensor resource ids.
const (
	RIDMinXValue device.ResourceID = 5508
	RIDMaxXValue device.ResourceID = 5509
	RIDMinYValue device.ResourceID = 5510
	RIDMaxYValue device.ResourceID = 5511
	RIDMinZValue device.ResourceID = 5512
	RIDMaxZValue device.ResourceID = 5513
	RIDXValue    device.ResourceID = 5702
	RIDYValue    device.ResourceID = 5703
	RIDZValue    device.ResourceID = 5704
)

// ThreeAxisConfig describes one three-axis sensor instance. The range
// applies to every axis.
type ThreeAxisConfig struct {
	Units    string
	MinRange float64
	MaxRange float64
	Source   observed.Source[observed.Vector3]
}

type axis struct {
	value, min, max float64
	rid             device.ResourceID
	minRID, maxRID  device.ResourceID
}

func (a *axis) poll(v float64, changed []device.ResourceID) []device.ResourceID {
	if v != a.value {
		a.value = v
		changed = append(changed, a.rid)
	}
	if v < a.min {
		a.min = v
		changed = append(changed, a.minRID)
	}
	if v > a.max {
		a.max = v
		changed = append(changed, a.maxRID)
	}
	return changed
}

func (a *axis) resetMinMax() {
	a.min, a.max = a.value, a.value
}

type threeAxisInstance struct {
	cfg     ThreeAxisConfig
	x, y, z axis
}

func newAxis(v float64, rid, minRID, maxRID device.ResourceID) axis {
	return axis{value: v, min: v, max: v, rid: rid, minRID: minRID, maxRID: maxRID}
}

// poll reads all three axes in one load and returns the resources whose
// value changed.
func (t *threeAxisInstance) poll() []device.ResourceID {
	v := t.cfg.Source.Get()
	var changed []device.ResourceID
	changed = t.x.poll(v.X, changed)
	changed = t.y.poll(v.Y, changed)
	changed = t.z.poll(v.Z, changed)
	return changed
}

func axisResource(name string, get func(*threeAxisInstance) float64) device.Handler[*threeAxisInstance] {
	return device.Handler[*threeAxisInstance]{
		Def: device.ResourceDef{Name: name, Kind: device.KindR, Type: device.TypeFloat},
		Read: func(t *threeAxisInstance, _ device.InstanceID) (device.Value, error) {
			return device.Float(get(t)), nil
		},
	}
}

// ThreeAxisSensor is an IPSO three-axis sensor object such as Accelerometer
// (3313).
type ThreeAxisSensor struct {
	*device.Model[*threeAxisInstance]
}

// NewThreeAxisSensor creates a three-axis sensor object.
func NewThreeAxisSensor(oid device.ObjectID, name string) *ThreeAxisSensor {
	t := &ThreeAxisSensor{}
	t.Model = device.NewModel(oid, name, t.schema())
	return t
}

// NewAccelerometer creates the IPSO Accelerometer object.
func NewAccelerometer() *ThreeAxisSensor {
	return NewThreeAxisSensor(OIDAccelerometer, "Accelerometer")
}

func (t *ThreeAxisSensor) schema() device.Schema[*threeAxisInstance] {
	return device.Schema[*threeAxisInstance]{
		RIDXValue:        axisResource("X Value", func(i *threeAxisInstance) float64 { return i.x.value }),
		RIDYValue:        axisResource("Y Value", func(i *threeAxisInstance) float64 { return i.y.value }),
		RIDZValue:        axisResource("Z Value", func(i *threeAxisInstance) float64 { return i.z.value }),
		RIDMinXValue:     axisResource("Min X Value", func(i *threeAxisInstance) float64 { return i.x.min }),
		RIDMaxXValue:     axisResource("Max X Value", func(i *threeAxisInstance) float64 { return i.x.max }),
		RIDMinYValue:     axisResource("Min Y Value", func(i *threeAxisInstance) float64 { return i.y.min }),
		RIDMaxYValue:     axisResource("Max Y Value", func(i *threeAxisInstance) float64 { return i.y.max }),
		RIDMinZValue:     axisResource("Min Z Value", func(i *threeAxisInstance) float64 { return i.z.min }),
		RIDMaxZValue:     axisResource("Max Z Value", func(i *threeAxisInstance) float64 { return i.z.max }),
		RIDMinRangeValue: axisResource("Min Range Value", func(i *threeAxisInstance) float64 { return i.cfg.MinRange }),
		RIDMaxRangeValue: axisResource("Max Range Value", func(i *threeAxisInstance) float64 { return i.cfg.MaxRange }),
		RIDSensorUnits: {
			Def: device.ResourceDef{Name: "Sensor Units", Kind: device.KindR, Type: device.TypeString},
			Read: func(i *threeAxisInstance, _ device.InstanceID) (device.Value, error) {
				return device.String(i.cfg.Units), nil
			},
		},
		RIDResetMinMax: {
			Def: device.ResourceDef{Name: "Reset Min and Max Measured Values", Kind: device.KindE},
			Execute: func(i *threeAxisInstance, iid device.InstanceID, _ string) error {
				for _, a := range []*axis{&i.x, &i.y, &i.z} {
					a.resetMinMax()
					t.NotifyResourceChanged(iid, a.minRID)
					t.NotifyResourceChanged(iid, a.maxRID)
				}
				return nil
			},
		},
	}
}

// AddInstance creates a three-axis instance seeded from the source's first
// reading.
func (t *ThreeAxisSensor) AddInstance(iid device.InstanceID, cfg ThreeAxisConfig) (device.InstanceID, error) {
	if cfg.Source == nil {
		return device.InstanceIDInvalid, ErrNoSource
	}
	if cfg.MinRange > cfg.MaxRange {
		return device.InstanceIDInvalid, fmt.Errorf("%w: %g > %g", ErrInvalidRange, cfg.MinRange, cfg.MaxRange)
	}
	return t.Model.AddInstance(iid, func(device.InstanceID) (*threeAxisInstance, error) {
		v := cfg.Source.Get()
		return &threeAxisInstance{
			cfg: cfg,
			x:   newAxis(v.X, RIDXValue, RIDMinXValue, RIDMaxXValue),
			y:   newAxis(v.Y, RIDYValue, RIDMinYValue, RIDMaxYValue),
			z:   newAxis(v.Z, RIDZValue, RIDMinZValue, RIDMaxZValue),
		}, nil
	})
}

// Update polls the source of one instance and notifies every resource whose
// value changed.
func (t *ThreeAxisSensor) Update(iid device.InstanceID) error {
	i, ok := t.Instance(iid)
	if !ok {
		return fmt.Errorf("%w: /%d/%d", device.ErrUnknownInstance, t.OID(), iid)
	}
	for _, rid := range i.poll() {
		t.NotifyResourceChanged(iid, rid)
	}
	return nil
}

// UpdateAll polls every instance.
func (t *ThreeAxisSensor) UpdateAll() {
	t.Each(func(iid device.InstanceID, i *threeAxisInstance) {
		for _, rid := range i.poll() {
			t.NotifyResourceChanged(iid, rid)
		}
	})
}

// Reading returns the last polled vector and units of an instance.
func (t *ThreeAxisSensor) Reading(iid device.InstanceID) (observed.Vector3, string, bool) {
	i, ok := t.Instance(iid)
	if !ok {
		return observed.Vector3{}, "", false
	}
	return observed.Vector3{X: i.x.value, Y: i.y.value, Z: i.z.value}, i.cfg.Units, true
}
