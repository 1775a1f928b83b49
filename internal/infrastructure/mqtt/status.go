package mqtt

import (
	"encoding/json"
	"time"
)

// Agent status values published on Topics.AgentStatus when
// mqtt.publish_status is enabled.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	reasonCrash    = "unexpected_disconnect"
	reasonShutdown = "graceful_shutdown"
)

// StatusMessage is the retained payload on the agent status topic. The
// broker publishes the offline variant with reason unexpected_disconnect as
// the will when the agent drops without closing.
type StatusMessage struct {
	Status    string `json:"status"`
	Endpoint  string `json:"endpoint"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (c *Client) statusPayload(status, reason string) []byte {
	data, _ := json.Marshal(StatusMessage{ //nolint:errcheck // Plain string fields
		Status:    status,
		Endpoint:  c.endpoint,
		ClientID:  c.clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return data
}
