package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/lazear/census2csv/internal/config"
	"github.com/lazear/census2csv/internal/dataprocessing"
	apierrors "github.com/lazear/census2csv/internal/errors"
	"github.com/lazear/census2csv/internal/exporter"
	"github.com/lazear/census2csv/internal/services"
	"github.com/lazear/census2csv/pkg/contracts/domain"
)

// FingerprintHeader carries the digest of the filter a response was produced with
const FingerprintHeader = "X-Filter-Fingerprint"

// ConvertRequest is the body of POST /api/v1/convert. Omitted options fall
// back to the server's processing defaults.
type ConvertRequest struct {
	Mode      string          `json:"mode" validate:"omitempty,oneof=protein peptide flat"`
	Average   *bool           `json:"average"`
	Division  string          `json:"division" validate:"omitempty,oneof=truncate float"`
	SpecCount string          `json:"spec_count" validate:"omitempty,oneof=merged protein"`
	Counts    string          `json:"counts" validate:"omitempty,oneof=original filtered"`
	KeepEmpty *bool           `json:"keep_empty"`
	Census    string          `json:"census" validate:"required"`
	Filter    json.RawMessage `json:"filter"`
}

// ConvertResponse is the JSON rendition of a conversion
type ConvertResponse struct {
	Header      []string                        `json:"header"`
	Rows        [][]string                      `json:"rows"`
	Stats       dataprocessing.FilterStatistics `json:"stats"`
	Channels    int                             `json:"channels"`
	Fingerprint string                          `json:"fingerprint"`
}

// FilterValidation is the response of POST /api/v1/filters/validate
type FilterValidation struct {
	Valid          bool     `json:"valid"`
	Name           string   `json:"name,omitempty"`
	Fingerprint    string   `json:"fingerprint"`
	Identity       bool     `json:"identity"`
	PeptideFilters int      `json:"peptide_filters"`
	ProteinFilters int      `json:"protein_filters"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Converter runs one in-memory conversion
type Converter interface {
	Convert(ctx context.Context, r io.Reader, job services.Job) (*dataprocessing.Result, error)
}

// ConvertHandler serves the conversion and filter endpoints
type ConvertHandler struct {
	converter    Converter
	defaults     dataprocessing.ProcessingOptions
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewConvertHandler creates a conversion handler. defaults supplies every
// option a request leaves out.
func NewConvertHandler(converter Converter, defaults dataprocessing.ProcessingOptions, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ConvertHandler {
	return &ConvertHandler{
		converter:    converter,
		defaults:     defaults,
		validate:     validator.New(),
		logger:       logger.With(slog.String("component", "convert_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the /api/v1 routes
func (h *ConvertHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/convert", h.Convert)
	r.Route("/filters", func(r chi.Router) {
		r.Get("/example", h.ExampleFilter)
		r.Post("/validate", h.ValidateFilter)
	})
	return r
}

// Convert handles POST /api/v1/convert
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	format := strings.ToLower(r.URL.Query().Get("format"))
	switch format {
	case "", exporter.FormatCSV, exporter.FormatXLSX, "json":
	default:
		h.errorHandler.HandleError(w, r, apierrors.InvalidParameter("format",
			fmt.Errorf("unsupported format %q (want csv, xlsx or json)", format)))
		return
	}

	var req ConvertRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.decodeFailed(w, r, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, validationProblem(err))
		return
	}

	filter := domain.NewFilter()
	if len(req.Filter) > 0 && string(req.Filter) != "null" {
		var err error
		if filter, err = config.ParseFilter(req.Filter, false); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidFilterError(err))
			return
		}
	}
	fingerprint, err := filter.Fingerprint()
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidFilterError(err))
		return
	}

	job := services.Job{Options: h.jobOptions(&req), Filter: filter}
	result, err := h.converter.Convert(ctx, strings.NewReader(req.Census), job)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "Census converted",
		slog.String("mode", string(job.Options.Mode)),
		slog.String("format", format),
		slog.Int("rows", result.Table.Len()),
		slog.Int("peptides_dropped", result.Stats.PeptidesDropped()),
		slog.String("filter_fingerprint", fingerprint))

	w.Header().Set(FingerprintHeader, fingerprint)

	switch format {
	case "json":
		render.JSON(w, r, ConvertResponse{
			Header:      result.Table.Header,
			Rows:        nonNilRows(result.Table.Rows),
			Stats:       result.Stats,
			Channels:    result.Channels,
			Fingerprint: fingerprint,
		})
	case exporter.FormatXLSX:
		h.writeTable(w, r, exporter.NewXLSXWriter(), result.Table,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	default:
		h.writeTable(w, r, exporter.NewCSVWriter(false), result.Table, "text/csv; charset=utf-8")
	}
}

// jobOptions overlays the request's options onto the server defaults
func (h *ConvertHandler) jobOptions(req *ConvertRequest) dataprocessing.ProcessingOptions {
	opts := h.defaults
	if req.Mode != "" {
		opts.Mode = dataprocessing.Mode(req.Mode)
	}
	if req.Average != nil {
		opts.Aggregate.Average = *req.Average
	}
	if req.Division != "" {
		opts.Aggregate.Division = dataprocessing.Division(req.Division)
	}
	if req.SpecCount != "" {
		opts.Aggregate.SpecCount = dataprocessing.SpecCountSource(req.SpecCount)
	}
	if req.Counts != "" {
		opts.Filter.CountSource = dataprocessing.CountSource(req.Counts)
	}
	if req.KeepEmpty != nil {
		opts.Filter.KeepEmptyProteins = *req.KeepEmpty
	}
	return opts
}

// writeTable encodes the table into a buffer first so that an encoding
// failure can still be reported as a problem document
func (h *ConvertHandler) writeTable(w http.ResponseWriter, r *http.Request, writer exporter.TableWriter, table *domain.Table, contentType string) {
	var buf bytes.Buffer
	if err := writer.Encode(&buf, table); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="census.%s"`, writer.Format()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ExampleFilter handles GET /api/v1/filters/example
func (h *ConvertHandler) ExampleFilter(w http.ResponseWriter, r *http.Request) {
	filter := domain.ExampleFilter()
	fingerprint, err := filter.Fingerprint()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.Header().Set(FingerprintHeader, fingerprint)

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "json":
		render.JSON(w, r, filter)
	case "yaml", "yml":
		data, err := config.EncodeFilter(filter, true)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	default:
		h.errorHandler.HandleError(w, r, apierrors.InvalidParameter("format",
			errors.New("want json or yaml")))
	}
}

// ValidateFilter handles POST /api/v1/filters/validate. The body is a JSON
// filter, or YAML when the Content-Type says so. ?channels=N additionally
// reports rules that reference channels beyond N.
func (h *ConvertHandler) ValidateFilter(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		h.decodeFailed(w, r, err)
		return
	}

	filter, err := config.ParseFilter(data, isYAMLContent(r.Header.Get("Content-Type")))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidFilterError(err))
		return
	}
	fingerprint, err := filter.Fingerprint()
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidFilterError(err))
		return
	}

	resp := FilterValidation{
		Valid:          true,
		Name:           filter.Name,
		Fingerprint:    fingerprint,
		Identity:       filter.IsIdentity(),
		PeptideFilters: len(filter.PeptideFilters),
		ProteinFilters: len(filter.ProteinFilters),
	}

	if raw := r.URL.Query().Get("channels"); raw != "" {
		var channels int
		if _, err := fmt.Sscanf(raw, "%d", &channels); err != nil || channels < 1 {
			h.errorHandler.HandleError(w, r, apierrors.InvalidParameter("channels",
				fmt.Errorf("want a positive integer, got %q", raw)))
			return
		}
		if err := filter.CheckChannels(channels); err != nil {
			resp.Warnings = append(resp.Warnings, err.Error())
		}
	}

	w.Header().Set(FingerprintHeader, fingerprint)
	render.JSON(w, r, resp)
}

// decodeFailed reports a body that could not be read or decoded. Oversized
// bodies keep their *http.MaxBytesError so they surface as 413.
func (h *ConvertHandler) decodeFailed(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
}

// validationProblem lists each failed field
func validationProblem(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apierrors.InvalidRequestWithError(err)
	}
	details := make([]apierrors.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		if fe.Tag() == "oneof" {
			msg = fmt.Sprintf("must be one of: %s", fe.Param())
		}
		details = append(details, apierrors.ValidationError{
			Field:   jsonFieldName(fe.Field()),
			Message: msg,
		})
	}
	return apierrors.NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", details)
}

var jsonFieldNames = map[string]string{
	"Mode":      "mode",
	"Division":  "division",
	"SpecCount": "spec_count",
	"Counts":    "counts",
	"Census":    "census",
}

func jsonFieldName(field string) string {
	if name, ok := jsonFieldNames[field]; ok {
		return name
	}
	return field
}

func isYAMLContent(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "yaml")
}

func nonNilRows(rows [][]string) [][]string {
	if rows == nil {
		return [][]string{}
	}
	return rows
}
