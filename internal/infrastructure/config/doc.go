// Package config handles loading and validating Warden Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields and policy sanity (threshold ordering)
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (broker passwords, JWT secret) should be set via
//     environment variables, not committed to the config file
//   - The config file should have restricted permissions (0600)
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.AuthPolicy.MaxAttempts)
package config
