package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/roev/internal/common"
	"github.com/user/roev/internal/metrics"
	"github.com/user/roev/internal/screen"
	"github.com/user/roev/pkg/config"
)

type failingFile struct {
	bytes.Buffer
	closed bool
}

func (f *failingFile) Close() error {
	f.closed = true
	return errors.New("no space left on device")
}

func sampleBatch(t *testing.T) *screen.Batch {
	t.Helper()
	r := screen.NewRunner(nil, metrics.NewEngine(metrics.PEBasisPrice))
	batch, err := r.ComputeFacts(context.Background(), screen.SourceCSV, []metrics.FinancialFacts{{
		Identifier:      "ACGL",
		EnterpriseValue: metrics.Of(1e9),
		NetIncome:       metrics.Of(5e7),
	}})
	require.NoError(t, err)
	return batch
}

func TestWriteReport_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	err := writeReport(sampleBatch(t), config.OutputConfig{Format: "csv", Path: path}, common.NewSilentLogger())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ACGL")
}

func TestWriteReport_CloseErrorIsReturned(t *testing.T) {
	file := &failingFile{}
	orig := createOutput
	createOutput = func(string) (io.WriteCloser, error) { return file, nil }
	t.Cleanup(func() { createOutput = orig })

	err := writeReport(sampleBatch(t), config.OutputConfig{Format: "json", Path: "out.json"}, common.NewSilentLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no space left on device")
	assert.True(t, file.closed)
	assert.Contains(t, file.String(), "ACGL")
}

func TestWriteReport_CreateError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.csv")
	err := writeReport(sampleBatch(t), config.OutputConfig{Format: "csv", Path: path}, common.NewSilentLogger())
	assert.Error(t, err)
}
