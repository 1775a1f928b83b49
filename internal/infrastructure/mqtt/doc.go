// Package mqtt provides MQTT client connectivity for the Gray Logic agent.
//
// One Client carries both the TTN telemetry bridge and the agent's own
// topics. It reconnects on its own and re-subscribes after each reconnect.
// With mqtt.publish_status set it also keeps a retained StatusMessage on the
// agent status topic, with a Last Will for crashes.
//
// The agent talks to two kinds of topic on one connection:
//
//	Agent ──► v3/{app}/devices/{device}/down/replace   (TTN downlinks)
//	Agent ◄── v3/{app}/devices/{device}/up             (TTN uplinks)
//	Agent ──► graylogic/agent/{endpoint}/...           (status, notifications)
//
// TTN brokers only accept the v3 topics, so agent topics are opt-in.
//
// TTN credentials are an application id and an API key. Keep them in the
// credentials file (see config.LoadCredentials) and enable TLS for any
// broker off the local network.
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Device.EndpointName)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	err = client.Subscribe(topics.TTNUplink(app, dev), 0,
//	    func(topic string, payload []byte) error {
//	        log.Printf("uplink: %s", payload)
//	        return nil
//	    })
package mqtt
