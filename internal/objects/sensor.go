package objects

import (
	"fmt"

	"github.com/nerrad567/gray-logic-agent/internal/device"
	"github.com/nerrad567/gray-logic-agent/internal/observed"
)

// IPSO sensor object ids.
const (
	OIDTemperature   device.ObjectID = 3303
	OIDAccelerometer device.ObjectID = 3313
)

// Resource ids shared by the IPSO sensor objects.
const (
	RIDMinMeasuredValue device.ResourceID = 5601
	RIDMaxMeasuredValue device.ResourceID = 5602
	RIDMinRangeValue    device.ResourceID = 5603
	RIDMaxRangeValue    device.ResourceID = 5604
	RIDResetMinMax      device.ResourceID = 5605
	RIDSensorValue      device.ResourceID = 5700
	RIDSensorUnits      device.ResourceID = 5701
)

// SensorConfig describes one basic sensor instance.
type SensorConfig struct {
	Units    string
	MinRange float64
	MaxRange float64
	Source   observed.Source[float64]
}

func (c SensorConfig) validate() error {
	if c.Source == nil {
		return ErrNoSource
	}
	if c.MinRange > c.MaxRange {
		return fmt.Errorf("%w: %g > %g", ErrInvalidRange, c.MinRange, c.MaxRange)
	}
	return nil
}

type sensorInstance struct {
	cfg   SensorConfig
	value float64
	min   float64
	max   float64
}

// poll reads the source and returns the resources whose value changed.
func (s *sensorInstance) poll() []device.ResourceID {
	v := s.cfg.Source.Get()
	var changed []device.ResourceID
	if v != s.value {
		s.value = v
		changed = append(changed, RIDSensorValue)
	}
	if v < s.min {
		s.min = v
		changed = append(changed, RIDMinMeasuredValue)
	}
	if v > s.max {
		s.max = v
		changed = append(changed, RIDMaxMeasuredValue)
	}
	return changed
}

func floatResource(name string, get func(*sensorInstance) float64) device.Handler[*sensorInstance] {
	return device.Handler[*sensorInstance]{
		Def: device.ResourceDef{Name: name, Kind: device.KindR, Type: device.TypeFloat},
		Read: func(s *sensorInstance, _ device.InstanceID) (device.Value, error) {
			return device.Float(get(s)), nil
		},
	}
}

// BasicSensor is an IPSO single-value sensor object such as Temperature
// (3303). Readings are taken from the source on Update; reads return the
// last polled value.
type BasicSensor struct {
	*device.Model[*sensorInstance]
}

// NewBasicSensor creates a basic sensor object with the given id and name.
func NewBasicSensor(oid device.ObjectID, name string) *BasicSensor {
	b := &BasicSensor{}
	b.Model = device.NewModel(oid, name, b.schema())
	return b
}

// NewTemperature creates the IPSO Temperature object.
func NewTemperature() *BasicSensor {
	return NewBasicSensor(OIDTemperature, "Temperature")
}

func (b *BasicSensor) schema() device.Schema[*sensorInstance] {
	return device.Schema[*sensorInstance]{
		RIDSensorValue:      floatResource("Sensor Value", func(s *sensorInstance) float64 { return s.value }),
		RIDMinMeasuredValue: floatResource("Min Measured Value", func(s *sensorInstance) float64 { return s.min }),
		RIDMaxMeasuredValue: floatResource("Max Measured Value", func(s *sensorInstance) float64 { return s.max }),
		RIDMinRangeValue:    floatResource("Min Range Value", func(s *sensorInstance) float64 { return s.cfg.MinRange }),
		RIDMaxRangeValue:    floatResource("Max Range Value", func(s *sensorInstance) float64 { return s.cfg.MaxRange }),
		RIDSensorUnits: {
			Def: device.ResourceDef{Name: "Sensor Units", Kind: device.KindR, Type: device.TypeString},
			Read: func(s *sensorInstance, _ device.InstanceID) (device.Value, error) {
				return device.String(s.cfg.Units), nil
			},
		},
		RIDResetMinMax: {
			Def: device.ResourceDef{Name: "Reset Min and Max Measured Values", Kind: device.KindE},
			Execute: func(s *sensorInstance, iid device.InstanceID, _ string) error {
				s.min, s.max = s.value, s.value
				b.NotifyResourceChanged(iid, RIDMinMeasuredValue)
				b.NotifyResourceChanged(iid, RIDMaxMeasuredValue)
				return nil
			},
		},
	}
}

// AddInstance creates a sensor instance. The first reading seeds the value
// and the measured minimum and maximum.
func (b *BasicSensor) AddInstance(iid device.InstanceID, cfg SensorConfig) (device.InstanceID, error) {
	if err := cfg.validate(); err != nil {
		return device.InstanceIDInvalid, err
	}
	return b.Model.AddInstance(iid, func(device.InstanceID) (*sensorInstance, error) {
		v := cfg.Source.Get()
		return &sensorInstance{cfg: cfg, value: v, min: v, max: v}, nil
	})
}

// Update polls the source of one instance and notifies every resource whose
// value changed.
func (b *BasicSensor) Update(iid device.InstanceID) error {
	s, ok := b.Instance(iid)
	if !ok {
		return fmt.Errorf("%w: /%d/%d", device.ErrUnknownInstance, b.OID(), iid)
	}
	for _, rid := range s.poll() {
		b.NotifyResourceChanged(iid, rid)
	}
	return nil
}

// UpdateAll polls every instance.
func (b *BasicSensor) UpdateAll() {
	b.Each(func(iid device.InstanceID, s *sensorInstance) {
		for _, rid := range s.poll() {
			b.NotifyResourceChanged(iid, rid)
		}
	})
}

// Reading returns the last polled value and units of an instance.
func (b *BasicSensor) Reading(iid device.InstanceID) (value float64, units string, ok bool) {
	s, ok := b.Instance(iid)
	if !ok {
		return 0, "", false
	}
	return s.value, s.cfg.Units, true
}
