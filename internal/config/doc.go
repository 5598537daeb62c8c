// Package config provides configuration management for census2csv.
// It loads settings from multiple sources, validates them, and reads and
// writes filter documents.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values (lowest priority)
//
// The file is taken from CENSUS_CONFIG, or census2csv.yaml /
// configs/census2csv.yaml in the working directory.
//
// # Environment Variables
//
// All environment variables follow the pattern CENSUS_<SECTION>_<FIELD>:
//
//	CENSUS_SERVER_PORT=8080
//	CENSUS_LOGGING_LEVEL=debug
//	CENSUS_PROCESSING_MODE=peptide
//	CENSUS_PROCESSING_WORKERS=8
//	CENSUS_OUTPUT_FORMAT=xlsx
//	CENSUS_TELEMETRY_ENABLED=true
//
// # Filter Documents
//
// Filters are JSON or YAML documents with peptide_filters and
// protein_filters lists:
//
//	filter, err := config.LoadFilter("filter.json")
//	if err != nil {
//	    // *errors.AppError of type CONFIG
//	}
package config
