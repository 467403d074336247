package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/relay/internal/output"
)

func TestWriteVersion(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-10-01")

	var plain bytes.Buffer
	require.NoError(t, writeVersion(&plain, buildVersionReport(false), output.FormatTable))
	assert.Equal(t, "relay 1.2.3\n", plain.String())

	var extended bytes.Buffer
	require.NoError(t, writeVersion(&extended, buildVersionReport(true), output.FormatTable))
	assert.Contains(t, extended.String(), "Commit: abc123\n")
	assert.Contains(t, extended.String(), "Gofulmen: ")

	var encoded bytes.Buffer
	require.NoError(t, writeVersion(&encoded, buildVersionReport(true), output.FormatJSON))
	var report versionReport
	require.NoError(t, json.Unmarshal(encoded.Bytes(), &report))
	assert.Equal(t, "relay", report.Binary)
	assert.Equal(t, "1.2.3", report.Version)
	assert.Equal(t, "2026-10-01", report.BuildDate)
	assert.NotEmpty(t, report.Go)
}
