package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/ugp/internal/model"
)

// Format names a dataset encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// rawDataset mirrors the document with pointer fields so missing keys can be told apart from zero values
type rawDataset struct {
	Reference *string       `json:"reference" yaml:"reference"`
	Analyses  []rawAnalysis `json:"analyses" yaml:"analyses"`
	present   bool
}

type rawAnalysis struct {
	Mineral     *string               `json:"mineral" yaml:"mineral"`
	OxidesWtPct map[string]float64    `json:"oxides_wt_pct" yaml:"oxides_wt_pct"`
	Metadata    *model.SampleMetadata `json:"metadata" yaml:"metadata"`
}

type decodeFunc func(r io.Reader, out *rawDataset) error

var decoders = map[Format]decodeFunc{
	FormatJSON: decodeJSON,
	FormatYAML: decodeYAML,
}

var extensions = map[string]Format{
	".json": FormatJSON,
	".yaml": FormatYAML,
	".yml":  FormatYAML,
}

// Extensions returns the file extensions Read understands, sorted
func Extensions() []string {
	out := make([]string, 0, len(extensions))
	for ext := range extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Read loads a dataset, choosing the decoder from the file extension
func Read(path string) (model.ThermoDataset, error) {
	ext := strings.ToLower(filepath.Ext(path))
	format, ok := extensions[ext]
	if !ok {
		return model.ThermoDataset{}, ingestErr("no reader for extension %q (supported: %s)", ext, strings.Join(Extensions(), ", "))
	}

	f, err := os.Open(path)
	if err != nil {
		return model.ThermoDataset{}, model.WithKind(model.ErrIngestion, fmt.Errorf("open dataset: %w", err))
	}
	defer func() { _ = f.Close() }()

	ds, err := Decode(f, format)
	if err != nil {
		return model.ThermoDataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Decode parses a dataset document in the given format
func Decode(r io.Reader, format Format) (model.ThermoDataset, error) {
	decode, ok := decoders[format]
	if !ok {
		return model.ThermoDataset{}, ingestErr("unsupported format %q", format)
	}

	var raw rawDataset
	if err := decode(r, &raw); err != nil {
		return model.ThermoDataset{}, model.WithKind(model.ErrIngestion, fmt.Errorf("decode %s: %w", format, err))
	}
	return raw.build()
}

func decodeJSON(r io.Reader, out *rawDataset) error {
	var probe map[string]json.RawMessage
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	_, out.present = probe["analyses"]
	return nil
}

func decodeYAML(r io.Reader, out *rawDataset) error {
	var node yaml.Node
	if err := yaml.NewDecoder(r).Decode(&node); err != nil {
		if err == io.EOF {
			return fmt.Errorf("empty document")
		}
		return err
	}
	if err := node.Decode(out); err != nil {
		return err
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.MappingNode {
		m := node.Content[0]
		for i := 0; i+1 < len(m.Content); i += 2 {
			if m.Content[i].Value == "analyses" {
				out.present = true
			}
		}
	}
	return nil
}

func (raw rawDataset) build() (model.ThermoDataset, error) {
	if !raw.present {
		return model.ThermoDataset{}, ingestErr("missing \"analyses\"")
	}

	analyses := make([]model.MineralAnalysis, 0, len(raw.Analyses))
	for i, entry := range raw.Analyses {
		switch {
		case entry.Mineral == nil:
			return model.ThermoDataset{}, ingestErr("analysis %d: missing \"mineral\"", i)
		case entry.Metadata == nil:
			return model.ThermoDataset{}, ingestErr("analysis %d: missing \"metadata\"", i)
		}

		a := model.MineralAnalysis{
			Mineral:     *entry.Mineral,
			OxidesWtPct: entry.OxidesWtPct,
			Metadata:    *entry.Metadata,
		}
		if a.OxidesWtPct == nil {
			a.OxidesWtPct = map[string]float64{}
		}
		if err := a.Validate(); err != nil {
			return model.ThermoDataset{}, ingestErr("analysis %d: %v", i, err)
		}
		analyses = append(analyses, a)
	}

	ref := ""
	if raw.Reference != nil {
		ref = *raw.Reference
	}
	return model.NewDataset(analyses, ref), nil
}

func ingestErr(format string, args ...any) error {
	return model.WithKind(model.ErrIngestion, fmt.Errorf(format, args...))
}
