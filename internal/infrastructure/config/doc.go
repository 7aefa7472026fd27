// Package config handles loading and validating LPWAN Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with LPWAN_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Credentials (MQTT password, InfluxDB token) should be supplied through the
// environment rather than the YAML file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Sync.PageSize)
package config
