package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-agent/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-agent-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// mockLogger implements Logger interface for testing.
type mockLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *mockLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "end-device-test-1@ttn"
	cfg.Auth.Password = "NNSXS.SECRET"

	opts := buildClientOptions(cfg, "agent-1")

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "agent-1" {
		t.Errorf("ClientID = %q, want agent-1", opts.ClientID)
	}
	if opts.Username != "end-device-test-1@ttn" || opts.Password != "NNSXS.SECRET" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.CleanSession || !opts.AutoReconnect {
		t.Error("expected clean session with auto-reconnect")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg, "agent-1")

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %s, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing or below minimum version")
	}
}

func TestBuildClientOptions_Anonymous(t *testing.T) {
	opts := buildClientOptions(testConfig(), "agent-1")
	if opts.Username != "" {
		t.Errorf("Username = %q, want empty", opts.Username)
	}
}

func TestResolveClientID(t *testing.T) {
	if got := resolveClientID("fixed", "porch"); got != "fixed" {
		t.Errorf("resolveClientID(fixed) = %q", got)
	}

	a := resolveClientID("", "porch")
	b := resolveClientID("", "porch")
	if !strings.HasPrefix(a, "porch-") {
		t.Errorf("generated id %q lacks endpoint prefix", a)
	}
	if a == b {
		t.Errorf("generated ids collide: %q", a)
	}
	if got := resolveClientID("", ""); !strings.HasPrefix(got, "graylogic-agent-") {
		t.Errorf("generated id %q lacks default prefix", got)
	}
}

func TestNewClient_StatusTopic(t *testing.T) {
	cfg := testConfig()

	c := newClient(cfg, "porch")
	if c.statusTopic != "" || c.options.WillEnabled {
		t.Error("status publishing enabled by default")
	}

	cfg.PublishStatus = true
	c = newClient(cfg, "porch")
	if c.statusTopic != "graylogic/agent/porch/status" {
		t.Errorf("statusTopic = %q", c.statusTopic)
	}
	if !c.options.WillEnabled || c.options.WillTopic != c.statusTopic || !c.options.WillRetained {
		t.Errorf("will = %v %q retained=%v", c.options.WillEnabled, c.options.WillTopic, c.options.WillRetained)
	}
	if !strings.Contains(string(c.options.WillPayload), "unexpected_disconnect") {
		t.Errorf("will payload = %s", c.options.WillPayload)
	}
}

func TestStatusPayload(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "agent-1"
	c := newClient(cfg, "porch")

	var online StatusMessage
	if err := json.Unmarshal(c.statusPayload(StatusOnline, ""), &online); err != nil {
		t.Fatalf("online payload: %v", err)
	}
	if online.Status != StatusOnline || online.Endpoint != "porch" || online.ClientID != "agent-1" || online.Reason != "" {
		t.Errorf("online payload = %+v", online)
	}
	if _, err := time.Parse(time.RFC3339, online.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", online.Timestamp, err)
	}

	if p := string(c.statusPayload(StatusOffline, reasonShutdown)); !strings.Contains(p, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload = %s", p)
	}
}

// =============================================================================
// Unconnected Client Tests
// =============================================================================

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	if (&Client{}).IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestPublishValidation(t *testing.T) {
	c := newClient(testConfig(), "porch")

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", nil, 0, ErrInvalidTopic},
		{"invalid qos", "t", nil, 3, ErrInvalidQoS},
		{"oversized payload", "t", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
		{"not connected", "t", []byte("x"), 0, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := newClient(testConfig(), "porch")
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 0, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := c.Subscribe("t", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("invalid qos error = %v", err)
	}
	if err := c.Subscribe("t", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v", err)
	}
	if err := c.Subscribe("t", 0, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v", err)
	}
	if c.SubscriptionCount() != 0 || c.HasSubscription("t") {
		t.Error("failed subscription was tracked")
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe empty topic error = %v", err)
	}
	if err := c.Unsubscribe("t"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe disconnected error = %v", err)
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

func TestWrapHandler_LogsErrors(t *testing.T) {
	c := newClient(testConfig(), "porch")
	logger := &mockLogger{}
	c.SetLogger(logger)

	var got string
	wrapped := c.wrapHandler(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return errors.New("bad payload")
	})
	wrapped(nil, fakeMessage{topic: "v3/a/devices/d/up", payload: []byte("{}")})

	if got != "v3/a/devices/d/up={}" {
		t.Errorf("handler saw %q", got)
	}
	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one", logger.warns)
	}
}

func TestWrapHandler_RecoversPanic(t *testing.T) {
	c := newClient(testConfig(), "porch")
	logger := &mockLogger{}
	c.SetLogger(logger)

	wrapped := c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	wrapped(nil, fakeMessage{topic: "t"})

	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one", logger.errors)
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	c := newClient(testConfig(), "porch")
	wrapped := c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	// Must not propagate the panic.
	wrapped(nil, fakeMessage{topic: "t"})
}

func TestSetLogger(t *testing.T) {
	c := newClient(testConfig(), "porch")
	if _, ok := c.getLogger().(noopLogger); !ok {
		t.Error("new client does not discard logs")
	}
	logger := &mockLogger{}
	c.SetLogger(logger)
	if c.getLogger() != Logger(logger) {
		t.Error("getLogger() did not return the installed logger")
	}
	c.SetLogger(nil)
	if _, ok := c.getLogger().(noopLogger); !ok {
		t.Error("SetLogger(nil) did not restore the discarding logger")
	}
}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"TTNUplink", topics.TTNUplink("end-device-test-1@ttn", "eui-0080e115000ad365"), "v3/end-device-test-1@ttn/devices/eui-0080e115000ad365/up"},
		{"TTNDownlinkReplace", topics.TTNDownlinkReplace("app@ttn", "dev"), "v3/app@ttn/devices/dev/down/replace"},
		{"TTNDownlinkPush", topics.TTNDownlinkPush("app@ttn", "dev"), "v3/app@ttn/devices/dev/down/push"},
		{"TTNAllUplinks", topics.TTNAllUplinks("app@ttn"), "v3/app@ttn/devices/+/up"},
		{"AgentStatus", topics.AgentStatus("porch"), "graylogic/agent/porch/status"},
		{"AgentNotify", topics.AgentNotify("porch", 3303, 0, 5700), "graylogic/agent/porch/notify/3303/0/5700"},
		{"AgentInstances", topics.AgentInstances("porch", 3201), "graylogic/agent/porch/instances/3201"},
		{"AllAgentNotifications", topics.AllAgentNotifications("porch"), "graylogic/agent/porch/notify/#"},
		{"AllAgentStatus", topics.AllAgentStatus(), "graylogic/agent/+/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

// stubToken is a paho Token with a fixed outcome.
type stubToken struct {
	done bool
	err  error
}

func (t stubToken) Wait() bool                     { return t.done }
func (t stubToken) WaitTimeout(time.Duration) bool { return t.done }
func (t stubToken) Done() <-chan struct{}          { return make(chan struct{}) }
func (t stubToken) Error() error                   { return t.err }

func TestWait(t *testing.T) {
	refused := errors.New("not authorised")

	if err := wait(stubToken{done: true}, ErrPublishFailed); err != nil {
		t.Errorf("wait() on acknowledged token error = %v", err)
	}

	err := wait(stubToken{done: false}, ErrPublishFailed)
	if !errors.Is(err, ErrPublishFailed) || !errors.Is(err, ErrTimeout) {
		t.Errorf("wait() on stalled token error = %v, want ErrPublishFailed and ErrTimeout", err)
	}

	err = wait(stubToken{done: true, err: refused}, ErrSubscribeFailed)
	if !errors.Is(err, ErrSubscribeFailed) || !errors.Is(err, refused) {
		t.Errorf("wait() on failed token error = %v, want ErrSubscribeFailed wrapping cause", err)
	}
}
