// Package config loads the agent's YAML configuration.
//
// Values are resolved in three layers, each overriding the last:
//
//  1. Built-in defaults (see LoadDefaults)
//  2. The YAML file, e.g. configs/config.yaml
//  3. GRAYLOGIC_AGENT_* environment variables
//
// MQTT broker credentials may instead come from the JSON-with-comments file
// named by mqtt.auth.credentials_file, so the main file can be committed without
// secrets. Load validates the merged result and reports every problem at
// once.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Device.EndpointName)
package config
