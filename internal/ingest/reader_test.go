package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/ugp/internal/model"
)

const sampleJSON = `{
  "reference": "mol%",
  "analyses": [
    {
      "mineral": "garnet",
      "oxides_wt_pct": {"SiO2": 38.1, "FeO": 30.2},
      "metadata": {"sample_id": "GT-01", "rock_name": "metapelite", "location": "Adirondacks"}
    },
    {
      "mineral": "biotite",
      "oxides_wt_pct": {"SiO2": 35.0},
      "metadata": {"sample_id": "BT-01", "comments": "rim"}
    }
  ]
}`

const sampleYAML = `
analyses:
  - mineral: garnet
    oxides_wt_pct:
      SiO2: 38.1
      FeO: 30.2
    metadata:
      sample_id: GT-01
      rock_name: metapelite
      location: Adirondacks
  - mineral: biotite
    oxides_wt_pct:
      SiO2: 35
    metadata:
      sample_id: BT-01
      comments: rim
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func expectedAnalyses() []model.MineralAnalysis {
	return []model.MineralAnalysis{
		{
			Mineral:     "garnet",
			OxidesWtPct: map[string]float64{"SiO2": 38.1, "FeO": 30.2},
			Metadata:    model.SampleMetadata{SampleID: "GT-01", RockName: "metapelite", Location: "Adirondacks"},
		},
		{
			Mineral:     "biotite",
			OxidesWtPct: map[string]float64{"SiO2": 35.0},
			Metadata:    model.SampleMetadata{SampleID: "BT-01", Comments: "rim"},
		},
	}
}

func TestRead_JSON(t *testing.T) {
	ds, err := Read(writeFile(t, "sample.json", sampleJSON))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	want := model.NewDataset(expectedAnalyses(), "mol%")
	if diff := cmp.Diff(want, ds); diff != "" {
		t.Errorf("dataset mismatch (-want +got):\n%s", diff)
	}
}

func TestRead_YAMLDefaultsReference(t *testing.T) {
	for _, name := range []string{"sample.yaml", "SAMPLE.YML"} {
		t.Run(name, func(t *testing.T) {
			ds, err := Read(writeFile(t, name, sampleYAML))
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}

			want := model.NewDataset(expectedAnalyses(), "")
			if diff := cmp.Diff(want, ds); diff != "" {
				t.Errorf("dataset mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRead_UnknownExtension(t *testing.T) {
	_, err := Read(writeFile(t, "sample.csv", "mineral,SiO2\n"))
	if !errors.Is(err, model.ErrIngestion) {
		t.Fatalf("expected ErrIngestion, got %v", err)
	}
	if !strings.Contains(err.Error(), ".csv") {
		t.Errorf("expected extension in message, got %q", err.Error())
	}
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, model.ErrIngestion) {
		t.Errorf("expected ErrIngestion, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist to stay reachable, got %v", err)
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		doc     string
		wantMsg string
	}{
		{"malformed json", FormatJSON, `{"analyses": [`, "decode json"},
		{"json array root", FormatJSON, `[]`, "decode json"},
		{"missing analyses", FormatJSON, `{"reference": "wt%"}`, `missing "analyses"`},
		{"missing mineral", FormatJSON, `{"analyses": [{"oxides_wt_pct": {}, "metadata": {"sample_id": "a"}}]}`, `analysis 0: missing "mineral"`},
		{"missing metadata", FormatJSON, `{"analyses": [{"mineral": "gt", "metadata": {"sample_id": "a"}}, {"mineral": "bt"}]}`, `analysis 1: missing "metadata"`},
		{"missing sample id", FormatJSON, `{"analyses": [{"mineral": "gt", "metadata": {}}]}`, "analysis 0: sample id is empty"},
		{"negative oxide", FormatYAML, "analyses:\n  - mineral: gt\n    oxides_wt_pct: {MgO: -1}\n    metadata: {sample_id: a}\n", "analysis 0"},
		{"infinite oxide", FormatYAML, "analyses:\n  - mineral: gt\n    oxides_wt_pct: {SiO2: .inf}\n    metadata: {sample_id: a}\n", "analysis 0"},
		{"empty yaml", FormatYAML, "", "empty document"},
		{"unknown format", Format("csv"), "", `unsupported format "csv"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc), tt.format)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, model.ErrIngestion) {
				t.Errorf("expected ErrIngestion, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected message containing %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestDecode_EmptyAnalyses(t *testing.T) {
	ds, err := Decode(strings.NewReader(`{"analyses": []}`), FormatJSON)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ds.Len() != 0 || ds.ReferenceFrame != model.DefaultReferenceFrame {
		t.Errorf("unexpected dataset %+v", ds)
	}
}

func TestExtensions(t *testing.T) {
	want := []string{".json", ".yaml", ".yml"}
	if diff := cmp.Diff(want, Extensions()); diff != "" {
		t.Errorf("extensions mismatch (-want +got):\n%s", diff)
	}
}
