// Package services implements the conversion workflow shared by the CLI
// and the HTTP API.
//
// ConversionService owns one filter and one set of processing options.
// ConvertFiles runs the parse, filter, aggregate and write pipeline for
// each file with a bounded number of workers; results come back in input
// order and a failed file never stops the others. Convert runs the same
// pipeline over an in-memory census stream and returns the table instead
// of writing it.
//
//	svc, err := services.NewConversionService(services.ConversionOptions{
//	    Processing: dataprocessing.DefaultOptions(),
//	    Filter:     filter,
//	    Writer:     exporter.NewCSVWriter(false),
//	    Workers:    4,
//	    Logger:     logger,
//	})
//	report := svc.ConvertFiles(ctx, paths)
//	if err := report.Err(); err != nil {
//	    os.Exit(1)
//	}
//
// HealthService reports uptime and the running conversion totals.
package services
