// Package shared holds code used across census2csv packages that belongs to
// no single layer. Its testutil subpackage provides census fixtures and a
// capturing slog handler for tests:
//
//	logger, logs := testutil.NewTestLogger(t)
//	path := testutil.WriteCensusFile(t, t.TempDir(), "run1.txt", testutil.SampleCensus())
//	...
//	assert.True(t, logs.ContainsMessage("Converted census file"))
package shared
