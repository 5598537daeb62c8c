// Package http implements the HTTP handlers of the census2csv conversion
// API. Handlers stay thin: they decode and validate the request, call the
// conversion service and render the result.
//
// # Routes
//
//	POST /api/v1/convert           convert an uploaded census document
//	GET  /api/v1/filters/example   the example filter (JSON or ?format=yaml)
//	POST /api/v1/filters/validate  validate a filter and return its fingerprint
//	GET  /api/health               liveness and conversion totals
//	GET  /api/version              build information
//
// # Error Handling
//
// Every error is rendered as an RFC 7807 problem document by
// errors.ErrorHandler:
//
//	{
//	    "type": "/errors/census/invalid",
//	    "title": "Unprocessable Entity",
//	    "status": 422,
//	    "detail": "[PARSING] line 3: peptide row before SLINE",
//	    "instance": "/api/v1/convert",
//	    "trace_id": "0b6f..."
//	}
//
// # Testing
//
// Handlers are tested with httptest against the real conversion service
// and the sample census fixture in internal/shared/testutil.
package http
