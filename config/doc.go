// Package config handles application configuration loading and validation.
//
// Configuration is loaded from a YAML file and validated using struct
// tags. The package supports multiple GTFS feeds with selection by
// name, and fills missing settings with workable defaults so the file
// itself is optional when flags supply the essentials.
package config
