// Package app wires the census2csv HTTP server: configuration, logging,
// telemetry, the conversion service, the chi router and graceful shutdown.
//
// # Initialization Flow
//
//  1. Load configuration (defaults, YAML file, CENSUS_* environment)
//  2. Initialize logging and OpenTelemetry
//  3. Build the conversion and health services
//  4. Set up middleware and routes
//  5. Create the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests and
// flushes telemetry. Initialization errors are returned to the caller; the
// package never calls os.Exit.
package app
