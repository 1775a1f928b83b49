package mqtt

import "fmt"

// Topic prefixes.
const (
	// TopicPrefixTTN is the base of The Things Stack v3 application topics.
	TopicPrefixTTN = "v3"

	// TopicPrefixAgent is the base for all agent topics.
	TopicPrefixAgent = "graylogic/agent"
)

// Topics provides builders for MQTT topics used by the agent.
//
//	topics := mqtt.Topics{}
//	up := topics.TTNUplink("end-device-test-1@ttn", "eui-0080e115000ad365")
//	// Returns: "v3/end-device-test-1@ttn/devices/eui-0080e115000ad365/up"
type Topics struct{}

// =============================================================================
// The Things Network
// =============================================================================

// TTNUplink returns the topic carrying a device's uplink messages.
//
// Example: v3/app@ttn/devices/eui-0080e115000ad365/up
func (Topics) TTNUplink(applicationID, deviceID string) string {
	return fmt.Sprintf("%s/%s/devices/%s/up", TopicPrefixTTN, applicationID, deviceID)
}

// TTNDownlinkReplace returns the topic that replaces a device's downlink queue.
//
// Example: v3/app@ttn/devices/eui-0080e115000ad365/down/replace
func (Topics) TTNDownlinkReplace(applicationID, deviceID string) string {
	return fmt.Sprintf("%s/%s/devices/%s/down/replace", TopicPrefixTTN, applicationID, deviceID)
}

// TTNDownlinkPush returns the topic that appends to a device's downlink queue.
//
// Example: v3/app@ttn/devices/eui-0080e115000ad365/down/push
func (Topics) TTNDownlinkPush(applicationID, deviceID string) string {
	return fmt.Sprintf("%s/%s/devices/%s/down/push", TopicPrefixTTN, applicationID, deviceID)
}

// TTNAllUplinks returns a pattern matching uplinks from every device of an application.
//
// Pattern: v3/app@ttn/devices/+/up
func (Topics) TTNAllUplinks(applicationID string) string {
	return fmt.Sprintf("%s/%s/devices/+/up", TopicPrefixTTN, applicationID)
}

// =============================================================================
// Agent Topics
// =============================================================================

// AgentStatus returns the retained online/offline status topic of an agent.
//
// Example: graylogic/agent/porch-node/status
func (Topics) AgentStatus(endpoint string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixAgent, endpoint)
}

// AgentNotify returns the topic carrying change notifications for one resource.
//
// Example: graylogic/agent/porch-node/notify/3303/0/5700
func (Topics) AgentNotify(endpoint string, oid, iid, rid uint16) string {
	return fmt.Sprintf("%s/%s/notify/%d/%d/%d", TopicPrefixAgent, endpoint, oid, iid, rid)
}

// AgentInstances returns the topic announcing an object's instance list.
//
// Example: graylogic/agent/porch-node/instances/3303
func (Topics) AgentInstances(endpoint string, oid uint16) string {
	return fmt.Sprintf("%s/%s/instances/%d", TopicPrefixAgent, endpoint, oid)
}

// AllAgentNotifications returns a pattern matching every notification of an agent.
//
// Pattern: graylogic/agent/porch-node/notify/#
func (Topics) AllAgentNotifications(endpoint string) string {
	return fmt.Sprintf("%s/%s/notify/#", TopicPrefixAgent, endpoint)
}

// AllAgentStatus returns a pattern matching the status of every agent.
//
// Pattern: graylogic/agent/+/status
func (Topics) AllAgentStatus() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixAgent)
}
