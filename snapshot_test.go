package cpuinfo

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path        string
		format      Format
		compression Compression
	}{
		{"host.yaml", FormatYAML, CompressionNone},
		{"host.YML", FormatYAML, CompressionNone},
		{"host.json", FormatJSON, CompressionNone},
		{"host.cbor", FormatCBOR, CompressionNone},
		{"host.json.zst", FormatJSON, CompressionZstd},
		{"dir.v2/host.cbor.lz4", FormatCBOR, CompressionLZ4},
		{"host.facts", FormatYAML, CompressionNone},
		{"host.zstd", FormatYAML, CompressionZstd},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			format, compression := FormatFromPath(tt.path)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, tt.compression, compression)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("yml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("toml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	facts := sampleFacts()

	for _, name := range []string{
		"facts.yaml", "facts.json", "facts.cbor",
		"facts.yaml.zst", "facts.json.lz4", "facts.cbor.zst", "facts.cbor.lz4",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteFactsFile(path, facts))

			back, err := ReadFactsFile(path)
			require.NoError(t, err)
			assert.Equal(t, facts, back)
		})
	}
}

func TestSnapshotCrossFormatDiff(t *testing.T) {
	dir := t.TempDir()
	facts := sampleFacts()

	yamlPath := filepath.Join(dir, "a.yaml")
	cborPath := filepath.Join(dir, "b.cbor.zst")
	require.NoError(t, WriteFactsFile(yamlPath, facts))
	require.NoError(t, WriteFactsFile(cborPath, facts))

	a, err := ReadFactsFile(yamlPath)
	require.NoError(t, err)
	b, err := ReadFactsFile(cborPath)
	require.NoError(t, err)

	assert.True(t, Diff(a, b).Equivalent())
}

func TestCBORSnapshotDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, WriteFacts(&a, sampleFacts(), FormatCBOR))
	require.NoError(t, WriteFacts(&b, sampleFacts(), FormatCBOR))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestWriteFactsEmptyList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFacts(&buf, nil, FormatJSON))
	assert.Equal(t, "[]\n", buf.String())

	back, err := ReadFacts(&buf, FormatJSON, "empty")
	require.NoError(t, err)
	assert.Empty(t, back)
}

func TestReadFactsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{name: "empty yaml", data: "", format: FormatYAML},
		{name: "not a list", data: "a: 1\n", format: FormatYAML},
		{name: "negative value", data: "- {name: x, value: -1}\n", format: FormatYAML},
		{name: "missing name", data: `[{"value": 1}]`, format: FormatJSON},
		{name: "truncated json", data: `[{"name": "x"`, format: FormatJSON},
		{name: "garbage cbor", data: "\xff\x00", format: FormatCBOR},
		{name: "json trailing garbage", data: `[{"name": "a", "value": 1}]}garbage`, format: FormatJSON},
		{name: "json second list", data: `[{"name": "a", "value": 1}] []`, format: FormatJSON},
		{name: "yaml broken second document", data: "- name: a\n  value: 1\n---\n- name: b\n  value: [\n", format: FormatYAML},
		{name: "yaml second document", data: "- name: a\n  value: 1\n---\n- name: b\n  value: 2\n", format: FormatYAML},
		{name: "cbor trailing byte", data: "\x81\xa2\x64name\x61a\x65value\x01\x00", format: FormatCBOR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFacts(bytes.NewBufferString(tt.data), tt.format, "test")
			require.Error(t, err)

			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr), "got %T: %v", err, err)
		})
	}
}

func TestReadFactsFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadFactsFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	corrupt := filepath.Join(dir, "corrupt.json.zst")
	require.NoError(t, os.WriteFile(corrupt, []byte("not zstd at all"), 0o600))
	_, err = ReadFactsFile(corrupt)
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr), "got %T: %v", err, err)
}

func TestWriteFactsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteFacts(&buf, sampleFacts(), "toml"), ErrUnknownFormat)
	_, err := ReadFacts(&buf, "toml", "test")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
