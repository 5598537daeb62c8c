package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazear/census2csv/internal/dataprocessing"
	apperrors "github.com/lazear/census2csv/internal/errors"
	"github.com/lazear/census2csv/internal/exporter"
	"github.com/lazear/census2csv/internal/shared/testutil"
	"github.com/lazear/census2csv/pkg/contracts/domain"
)

const sampleProteinCSV = "accession,description,spectral_count,sequence_count,channel_1,channel_2\n" +
	"sp|P1|ONE,Protein one; isoform 2,3,2,115,225\n" +
	"Reverse_sp|P2|TWO,decoy,1,1,0,7\n" +
	"sp|P3|THREE,shares the next peptide,1,1,0,7\n"

func newService(t *testing.T, opts ConversionOptions) (*ConversionService, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	opts.Logger = logger
	if opts.Processing.Mode == "" {
		opts.Processing = dataprocessing.DefaultOptions()
	}
	svc, err := NewConversionService(opts)
	require.NoError(t, err)
	return svc, logs
}

func TestNewConversionService_InvalidFilter(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	filter := domain.NewFilter().AddPeptideFilter(domain.ChannelIntensityFilter(0, 5))

	_, err := NewConversionService(ConversionOptions{Filter: filter, Logger: logger})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
	assert.Contains(t, err.Error(), "channel must be >= 1")
}

func TestNewConversionService_Fingerprint(t *testing.T) {
	a, _ := newService(t, ConversionOptions{Filter: domain.ExampleFilter()})
	renamed := domain.ExampleFilter()
	renamed.Name = "other"
	b, _ := newService(t, ConversionOptions{Filter: renamed})
	identity, _ := newService(t, ConversionOptions{})

	assert.Len(t, a.Fingerprint(), 64)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), identity.Fingerprint())
}

func TestConvertFile_ProteinCSV(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteCensusFile(t, dir, "run1-census-out.txt", testutil.SampleCensus())
	svc, _ := newService(t, ConversionOptions{Writer: exporter.NewCSVWriter(false)})

	res := svc.ConvertFile(context.Background(), input)
	require.NoError(t, res.Err)

	assert.Equal(t, filepath.Join(dir, "run1-census-out.csv"), res.Output)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 5, res.Stats.PeptidesIn)
	assert.Equal(t, 5, res.Stats.PeptidesOut)

	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.Equal(t, sampleProteinCSV, string(data))
}

func TestConvertFile_OutputDirAndFilter(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteCensusFile(t, dir, "run1.txt", testutil.SampleCensus())
	outDir := filepath.Join(dir, "converted")

	svc, _ := newService(t, ConversionOptions{
		Filter:    domain.NewFilter().AddProteinFilter(domain.ExcludeReverseFilter()),
		Writer:    exporter.NewCSVWriter(false),
		OutputDir: outDir,
	})

	res := svc.ConvertFile(context.Background(), input)
	require.NoError(t, res.Err)
	assert.Equal(t, filepath.Join(outDir, "run1.csv"), res.Output)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 1, res.Stats.ProteinsDropped())

	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Reverse_")
}

func TestConvertFile_XLSX(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteCensusFile(t, dir, "run1.txt", testutil.SampleCensus())
	svc, _ := newService(t, ConversionOptions{Writer: exporter.NewXLSXWriter()})

	res := svc.ConvertFile(context.Background(), input)
	require.NoError(t, res.Err)
	assert.Equal(t, filepath.Join(dir, "run1.xlsx"), res.Output)
	assert.FileExists(t, res.Output)
}

func TestConvertFile_Failures(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		path     string
		wantType apperrors.ErrorType
		wantMsg  string
	}{
		{
			name:     "missing input",
			path:     filepath.Join(dir, "missing.txt"),
			wantType: apperrors.ErrTypeNotFound,
		},
		{
			name:     "malformed census",
			path:     testutil.WriteCensusFile(t, dir, "bad.txt", "H\tx\nS\tK.AAAK.L\t1\n"),
			wantType: apperrors.ErrTypeParsing,
		},
		{
			name:     "output would overwrite input",
			path:     testutil.WriteCensusFile(t, dir, "already.csv", testutil.SampleCensus()),
			wantType: apperrors.ErrTypeValidation,
			wantMsg:  "overwrite",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, logs := newService(t, ConversionOptions{})

			res := svc.ConvertFile(context.Background(), tt.path)
			require.Error(t, res.Err)
			assert.True(t, apperrors.IsType(res.Err, tt.wantType), "got %v", res.Err)
			if tt.wantMsg != "" {
				assert.Contains(t, res.Err.Error(), tt.wantMsg)
			}
			assert.Empty(t, res.Output)
			assert.True(t, logs.ContainsMessage("Conversion failed"))
			assert.Equal(t, int64(1), svc.Totals().FilesFailed)
		})
	}
}

func TestConvertFiles_OrderAndIsolation(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		content := testutil.SampleCensus()
		if name == "c.txt" {
			content = "not a census file\n"
		}
		paths = append(paths, testutil.WriteCensusFile(t, dir, name, content))
	}

	svc, _ := newService(t, ConversionOptions{Workers: 3})
	report := svc.ConvertFiles(context.Background(), paths)

	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Results, len(paths))
	for i, r := range report.Results {
		assert.Equal(t, paths[i], r.Input)
		if i == 2 {
			assert.Error(t, r.Err)
			continue
		}
		assert.NoError(t, r.Err)
		assert.Equal(t, strings.TrimSuffix(paths[i], ".txt")+".csv", r.Output)
	}

	assert.Equal(t, 1, report.Failed)
	assert.EqualError(t, report.Err(), "1 of 5 files failed")

	totals := svc.Totals()
	assert.Equal(t, int64(4), totals.FilesConverted)
	assert.Equal(t, int64(1), totals.FilesFailed)
	assert.Equal(t, int64(12), totals.RowsWritten)
}

func TestConvertFiles_Cancelled(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		testutil.WriteCensusFile(t, dir, "a.txt", testutil.SampleCensus()),
		testutil.WriteCensusFile(t, dir, "b.txt", testutil.SampleCensus()),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc, _ := newService(t, ConversionOptions{Workers: 2})
	report := svc.ConvertFiles(ctx, paths)

	assert.Equal(t, 2, report.Failed)
	for _, r := range report.Results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.NoFileExists(t, filepath.Join(dir, "a.csv"))
}

func TestConvertFiles_OutputCollision(t *testing.T) {
	dir := t.TempDir()
	first := testutil.WriteCensusFile(t, dir, filepath.Join("a", "x.txt"), testutil.SampleCensus())
	second := testutil.WriteCensusFile(t, dir, filepath.Join("b", "x.txt"),
		strings.Replace(testutil.SampleCensus(), "sp|P1|ONE", "sp|P9|NINE", 1))
	other := testutil.WriteCensusFile(t, dir, filepath.Join("b", "y.txt"), testutil.SampleCensus())
	outDir := filepath.Join(dir, "out")

	svc, logs := newService(t, ConversionOptions{
		Writer:    exporter.NewCSVWriter(false),
		OutputDir: outDir,
		Workers:   4,
	})
	report := svc.ConvertFiles(context.Background(), []string{first, second, other})

	require.Len(t, report.Results, 3)
	assert.NoError(t, report.Results[0].Err)
	assert.NoError(t, report.Results[2].Err)
	assert.Equal(t, filepath.Join(outDir, "x.csv"), report.Results[0].Output)
	assert.Equal(t, filepath.Join(outDir, "y.csv"), report.Results[2].Output)

	err := report.Results[1].Err
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	assert.Contains(t, err.Error(), "already written by another input")
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, int64(1), svc.Totals().FilesFailed)
	assert.True(t, logs.ContainsMessage("Conversion failed"))

	data, readErr := os.ReadFile(filepath.Join(outDir, "x.csv"))
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "sp|P1|ONE")
	assert.NotContains(t, string(data), "sp|P9|NINE")
}

func TestConvertFiles_Empty(t *testing.T) {
	svc, _ := newService(t, ConversionOptions{})
	report := svc.ConvertFiles(context.Background(), nil)
	assert.Empty(t, report.Results)
	assert.NoError(t, report.Err())
}

func TestConvert_PeptideJob(t *testing.T) {
	svc, _ := newService(t, ConversionOptions{})

	opts := dataprocessing.DefaultOptions()
	opts.Mode = dataprocessing.ModePeptide
	job := Job{
		Options: opts,
		Filter:  domain.NewFilter().AddPeptideFilter(domain.TrypticFilter()),
	}

	result, err := svc.Convert(context.Background(), strings.NewReader(testutil.SampleCensus()), job)
	require.NoError(t, err)

	assert.Equal(t, []string{"accession", "description", "spectral_count", "sequence", "channel_1", "channel_2"}, result.Table.Header)
	assert.Equal(t, [][]string{
		{"sp|P1|ONE", "Protein one; isoform 2", "1", "K.AAAK.L", "10", "20"},
		{"sp|P1|ONE", "Protein one; isoform 2", "1", "R.AAAK.L", "5", "5"},
		{"sp|P1|ONE", "Protein one; isoform 2", "1", "-.BBBR.-", "100", "200"},
	}, result.Table.Rows)
	assert.Equal(t, dataprocessing.FilterStatistics{ProteinsIn: 3, ProteinsOut: 1, PeptidesIn: 5, PeptidesOut: 3}, result.Stats)
	assert.Equal(t, int64(1), svc.Totals().FilesConverted)
}

func TestConvert_ParseError(t *testing.T) {
	svc, _ := newService(t, ConversionOptions{})

	_, err := svc.Convert(context.Background(), strings.NewReader("P\tx\n"), Job{Options: dataprocessing.DefaultOptions()})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}

func TestConvert_MissingChannelWarning(t *testing.T) {
	svc, logs := newService(t, ConversionOptions{})
	job := Job{
		Options: dataprocessing.DefaultOptions(),
		Filter:  domain.NewFilter().AddPeptideFilter(domain.ChannelIntensityFilter(3, 1)),
	}

	result, err := svc.Convert(context.Background(), strings.NewReader(testutil.SampleCensus()), job)
	require.NoError(t, err)
	assert.Zero(t, result.Table.Len())
	assert.True(t, logs.ContainsMessage("Filter references missing channels"))
}

func TestHealthService(t *testing.T) {
	svc, _ := newService(t, ConversionOptions{})
	logger, _ := testutil.NewTestLogger(t)

	health := NewHealthService("1.2.0", "", svc, logger).HealthCheck(context.Background())
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "1.2.0", health.Version)
	assert.Equal(t, ConversionTotals{}, health.Services["totals"])

	degraded := NewHealthService("1.2.0", "", nil, logger).HealthCheck(context.Background())
	assert.Equal(t, "degraded", degraded.Status)

	version := NewHealthService("1.2.0", "2026-01-01", nil, logger).Version()
	assert.Equal(t, "2026-01-01", version["build_time"])
}
