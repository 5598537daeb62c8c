package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lazear/census2csv/internal/errors"
	"github.com/lazear/census2csv/pkg/contracts/domain"
)

func TestLoadFilter(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	tests := []struct {
		name     string
		path     string
		wantErr  bool
		validate func(*testing.T, *domain.Filter)
	}{
		{
			name: "no file means identity",
			path: "",
			validate: func(t *testing.T, f *domain.Filter) {
				assert.True(t, f.IsIdentity())
			},
		},
		{
			name: "json",
			path: write("filter.json", `{"peptide_filters":["Unique",{"TotalIntensity":5000}],"protein_filters":[{"SequenceCounts":2}]}`),
			validate: func(t *testing.T, f *domain.Filter) {
				assert.Equal(t, []domain.PeptideFilter{domain.UniqueFilter(), domain.TotalIntensityFilter(5000)}, f.PeptideFilters)
				assert.Equal(t, []domain.ProteinFilter{domain.SequenceCountsFilter(2)}, f.ProteinFilters)
			},
		},
		{
			name: "yaml",
			path: write("filter.yml", "peptide_filters:\n  - Tryptic\nprotein_filters:\n  - ExcludeReverse\n"),
			validate: func(t *testing.T, f *domain.Filter) {
				assert.Equal(t, []domain.PeptideFilter{domain.TrypticFilter()}, f.PeptideFilters)
				assert.Equal(t, []domain.ProteinFilter{domain.ExcludeReverseFilter()}, f.ProteinFilters)
			},
		},
		{
			name:    "missing file",
			path:    filepath.Join(dir, "missing.json"),
			wantErr: true,
		},
		{
			name:    "malformed json",
			path:    write("bad.json", `{"peptide_filters": [`),
			wantErr: true,
		},
		{
			name:    "invalid parameters",
			path:    write("invalid.json", `{"peptide_filters":[{"ChannelIntensity":[0, 10]}]}`),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := LoadFilter(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				var appErr *apperrors.AppError
				require.True(t, errors.As(err, &appErr))
				assert.Equal(t, apperrors.ErrTypeConfig, appErr.Type)
				assert.Equal(t, tt.path, appErr.Context["path"])
				return
			}
			require.NoError(t, err)
			tt.validate(t, f)
		})
	}
}

func TestWriteExampleFilter(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"filter.json", "nested/filter.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteExampleFilter(path))

			f, err := LoadFilter(path)
			require.NoError(t, err)
			assert.Equal(t, domain.ExampleFilter(), f)
		})
	}
}

func TestEncodeFilter_JSONShape(t *testing.T) {
	data, err := EncodeFilter(domain.NewFilter().AddPeptideFilter(domain.UniqueFilter()), false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"peptide_filters":["Unique"],"protein_filters":[]}`, string(data))
}
