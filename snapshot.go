package cpuinfo

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"gopkg.in/yaml.v3"

	"github.com/slashdevops/cpuinfo/internal/codec"
)

// Format is the encoding of a fact snapshot.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	// FormatCBOR uses Core Deterministic Encoding, so equal fact lists
	// produce identical files.
	FormatCBOR Format = "cbor"
)

// ParseFormat validates a format name given on the command line.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatYAML, FormatJSON, FormatCBOR:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("snapshot format %q: %w", name, ErrUnknownFormat)
	}
}

// Compression is the optional compression layer of a snapshot file.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// FormatFromPath derives the snapshot encoding and compression from a file
// name such as "host.json.zst". Unknown extensions are read as YAML, which
// also accepts JSON.
func FormatFromPath(path string) (Format, Compression) {
	name := strings.ToLower(filepath.Base(path))

	compression := CompressionNone
	switch ext := filepath.Ext(name); ext {
	case ".zst", ".zstd":
		compression = CompressionZstd
		name = strings.TrimSuffix(name, ext)
	case ".lz4":
		compression = CompressionLZ4
		name = strings.TrimSuffix(name, ext)
	}

	switch filepath.Ext(name) {
	case ".json":
		return FormatJSON, compression
	case ".cbor":
		return FormatCBOR, compression
	default:
		return FormatYAML, compression
	}
}

// WriteFacts encodes facts to w.
func WriteFacts(w io.Writer, facts []Fact[Value], format Format) error {
	if facts == nil {
		facts = []Fact[Value]{}
	}
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(facts); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(facts)
	case FormatCBOR:
		return codec.NewEncoder(w).Encode(facts)
	default:
		return fmt.Errorf("snapshot format %q: %w", format, ErrUnknownFormat)
	}
}

// ReadFacts decodes a snapshot from r. The stream must hold exactly one
// fact list. Malformed input or trailing data is reported as a
// [*ParseError] naming source.
func ReadFacts(r io.Reader, format Format, source string) ([]Fact[Value], error) {
	var dec decoder
	switch format {
	case FormatYAML:
		dec = yaml.NewDecoder(r)
	case FormatJSON:
		dec = json.NewDecoder(r)
	case FormatCBOR:
		dec = codec.NewDecoder(r)
	default:
		return nil, fmt.Errorf("snapshot format %q: %w", format, ErrUnknownFormat)
	}

	var facts []Fact[Value]
	if err := decodeSingle(dec, &facts); err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	for i, f := range facts {
		if f.Name == "" {
			return nil, &ParseError{Source: source, Err: fmt.Errorf("fact %d has no name", i)}
		}
	}
	return facts, nil
}

type decoder interface {
	Decode(v any) error
}

// decodeSingle decodes one value into v and requires the stream to end
// after it.
func decodeSingle(dec decoder, v any) error {
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty snapshot")
		}
		return err
	}

	var extra any
	switch err := dec.Decode(&extra); {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return fmt.Errorf("after fact list: %w", err)
	default:
		return errors.New("unexpected data after fact list")
	}
}

// WriteFactsFile writes facts to path in the format and compression
// implied by its extension.
func WriteFactsFile(path string, facts []Fact[Value]) (err error) {
	format, compression := FormatFromPath(path)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("closing snapshot %s: %w", path, closeErr)
		}
	}()

	bw := bufio.NewWriter(f)
	cw, err := compressWriter(bw, compression)
	if err != nil {
		return err
	}
	if err := WriteFacts(cw, facts, format); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", path, err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", path, err)
	}
	return bw.Flush()
}

// ReadFactsFile reads a snapshot written by [WriteFactsFile].
func ReadFactsFile(path string) ([]Fact[Value], error) {
	format, compression := FormatFromPath(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	r, err := decompressReader(bufio.NewReader(f), compression)
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}
	defer r.Close()

	return ReadFacts(r, format, path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func compressWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return enc, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("compression %q: %w", c, ErrUnknownFormat)
	}
}

func decompressReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return dec.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("compression %q: %w", c, ErrUnknownFormat)
	}
}
