// Package config handles loading and validating posebridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Slot definitions are part of the file. Each entry names a device kind and
// six channel bindings:
//
//	slots:
//	  overflow: truncate
//	  auto_connect: true
//	  definitions:
//	    - kind: controller
//	      x:     {device: 0, property: position_x}
//	      y:     {device: 0, property: position_y}
//	      z:     {device: 0, property: position_z}
//	      pitch: {device: 0, property: orientation_pitch}
//	      roll:  {device: 0, property: orientation_roll}
//	      yaw:   {device: 0, property: orientation_yaw}
//
// An unknown property name is accepted and reads as 0; an unknown kind fails
// validation.
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Consumer.Slots)
package config
