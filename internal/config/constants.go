package config

import "github.com/lazear/census2csv/pkg/contracts"

// Application constants
const (
	AppName    = "census2csv"
	AppVersion = contracts.Version

	// EnvPrefix namespaces environment variables (CENSUS_SERVER_PORT, ...)
	EnvPrefix = "CENSUS"
	// ConfigFileEnv points at an explicit YAML config file
	ConfigFileEnv = "CENSUS_CONFIG"

	DefaultLogFile     = "logs/census2csv.log"
	DefaultDecoyPrefix = "Reverse_"
	DefaultWorkers     = 4

	// Rate limiting for the HTTP API
	DefaultRateLimit = 20 // requests per second
	DefaultBurstSize = 10

	// ExampleFilterFile is written by the -example flag
	ExampleFilterFile = "filter.json"
)
