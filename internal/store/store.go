// Package store reads and writes assemblies and scores as JSON documents,
// optionally zstd compressed.
package store

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/metrics"
)

// CompressedSuffix marks zstd compressed files.
const CompressedSuffix = ".zst"

// AssemblyRecord is the wire form of an assembly.
type AssemblyRecord struct {
	Dims   []string         `json:"dims"`
	Shape  []int            `json:"shape"`
	Values []float64        `json:"values"`
	Coords []assembly.Coord `json:"coords"`
}

func NewAssemblyRecord(a *assembly.Assembly) AssemblyRecord {
	return AssemblyRecord{
		Dims:   a.Dims(),
		Shape:  a.Shape(),
		Values: a.Values(),
		Coords: a.Coords(),
	}
}

// Assembly validates the record and builds the assembly it describes.
func (r AssemblyRecord) Assembly() (*assembly.Assembly, error) {
	return assembly.New(r.Values, r.Dims, r.Shape, r.Coords...)
}

// ScoreRecord is the wire form of a score.
type ScoreRecord struct {
	Center      float64                `json:"center"`
	Error       float64                `json:"error"`
	Raw         AssemblyRecord         `json:"raw"`
	Aggregation AssemblyRecord         `json:"aggregation"`
	Attrs       map[string]ScoreRecord `json:"attrs,omitempty"`
}

func NewScoreRecord(s *metrics.Score) ScoreRecord {
	rec := ScoreRecord{
		Center:      s.Center(),
		Error:       s.Error(),
		Raw:         NewAssemblyRecord(s.Raw),
		Aggregation: NewAssemblyRecord(s.Aggregation),
	}
	if len(s.Attrs) > 0 {
		rec.Attrs = make(map[string]ScoreRecord, len(s.Attrs))
		for name, attr := range s.Attrs {
			rec.Attrs[name] = NewScoreRecord(attr)
		}
	}
	return rec
}

// EncodeAssembly writes a as JSON to w, zstd compressed when compressed is set.
func EncodeAssembly(w io.Writer, a *assembly.Assembly, compressed bool) error {
	return encode(w, NewAssemblyRecord(a), compressed)
}

// DecodeAssembly reads an assembly written by EncodeAssembly.
func DecodeAssembly(r io.Reader, compressed bool) (*assembly.Assembly, error) {
	var rec AssemblyRecord
	if err := decode(r, &rec, compressed); err != nil {
		return nil, err
	}
	a, err := rec.Assembly()
	if err != nil {
		return nil, fmt.Errorf("invalid assembly record: %w", err)
	}
	return a, nil
}

func EncodeScore(w io.Writer, s *metrics.Score, compressed bool) error {
	return encode(w, NewScoreRecord(s), compressed)
}

func DecodeScore(r io.Reader, compressed bool) (ScoreRecord, error) {
	var rec ScoreRecord
	err := decode(r, &rec, compressed)
	return rec, err
}

// ReadAssembly loads an assembly file; a .zst suffix selects zstd.
func ReadAssembly(path string) (*assembly.Assembly, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open assembly: %w", err)
	}
	defer f.Close()

	a, err := DecodeAssembly(f, IsCompressed(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	log.Debug().Str("path", path).Ints("shape", a.Shape()).Msg("assembly loaded")
	return a, nil
}

// WriteAssembly stores a at path; a .zst suffix selects zstd.
func WriteAssembly(path string, a *assembly.Assembly) error {
	return writeFile(path, func(w io.Writer) error { return EncodeAssembly(w, a, IsCompressed(path)) })
}

// WriteScore stores s at path; a .zst suffix selects zstd.
func WriteScore(path string, s *metrics.Score) error {
	return writeFile(path, func(w io.Writer) error { return EncodeScore(w, s, IsCompressed(path)) })
}

func ReadScore(path string) (ScoreRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return ScoreRecord{}, fmt.Errorf("open score: %w", err)
	}
	defer f.Close()
	return DecodeScore(f, IsCompressed(path))
}

func IsCompressed(path string) bool {
	return strings.HasSuffix(path, CompressedSuffix)
}

// writeFile writes through a temporary file in the target directory and
// renames it into place.
func writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("file written")
	return nil
}

func encode(w io.Writer, v any, compressed bool) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if compressed {
		if data, err = Compress(data); err != nil {
			return err
		}
	}
	_, err = w.Write(data)
	return err
}

func decode(r io.Reader, v any, compressed bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if compressed {
		if data, err = Decompress(data); err != nil {
			return err
		}
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

// Decompress inflates a zstd frame.
func Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zstd: failed to create reader: %w", err)
	}
	defer decoder.Close()

	out, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("zstd: failed to decompress: %w", err)
	}
	return out, nil
}

// Compress deflates data into a single zstd frame.
func Compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd: failed to create encoder: %w", err)
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, nil), nil
}
