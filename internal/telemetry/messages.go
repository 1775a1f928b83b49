package telemetry

import (
	"encoding/json"
	"time"
)

// Uplink is the subset of a The Things Network v3 uplink message the agent
// reads.
//
// Example payload:
//
//	{
//	  "end_device_ids": {"device_id": "eui-0080e115000ad365", ...},
//	  "received_at": "2026-10-15T12:00:00.123Z",
//	  "uplink_message": {
//	    "f_port": 2,
//	    "decoded_payload": {
//	      "temperature_1": 21.5,
//	      "accelerometer_2": {"x": 0.01, "y": -0.02, "z": 1.0},
//	      "digital_out_3": 1
//	    }
//	  }
//	}
type Uplink struct {
	EndDeviceIDs  EndDeviceIDs   `json:"end_device_ids"`
	ReceivedAt    time.Time      `json:"received_at"`
	UplinkMessage *UplinkMessage `json:"uplink_message"`
}

// EndDeviceIDs identifies the device that sent an uplink.
type EndDeviceIDs struct {
	DeviceID       string         `json:"device_id"`
	DevEUI         string         `json:"dev_eui,omitempty"`
	ApplicationIDs ApplicationIDs `json:"application_ids"`
}

// ApplicationIDs identifies the TTN application.
type ApplicationIDs struct {
	ApplicationID string `json:"application_id"`
}

// UplinkMessage carries the decoded Cayenne LPP fields.
type UplinkMessage struct {
	FPort          int                        `json:"f_port"`
	FrmPayload     string                     `json:"frm_payload,omitempty"`
	DecodedPayload map[string]json.RawMessage `json:"decoded_payload"`
}

// Acceleration is the decoded form of an accelerometer field.
type Acceleration struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// DownlinkEnvelope is published to the downlink replace topic.
type DownlinkEnvelope struct {
	Downlinks []Downlink `json:"downlinks"`
}

// Downlink is one queued downlink frame.
type Downlink struct {
	FPort      int    `json:"f_port"`
	FrmPayload string `json:"frm_payload"`
	Priority   string `json:"priority"`
}

// Cayenne LPP field name prefixes.
const (
	prefixTemperature   = "temperature"
	prefixAccelerometer = "accelerometer"
	prefixDigitalOutput = "digital_out"
)

// outputPayloads is the downlink payload for each output state: a single
// byte 0x00 or 0x01, base64 encoded.
var outputPayloads = [2]string{"AA==", "AQ=="}
