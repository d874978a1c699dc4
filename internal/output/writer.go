package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/ugp/internal/model"
)

// Encode writes ens as an indented result document
func Encode(w io.Writer, ens model.PTEnsemble) error {
	data, err := marshal(ens)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return model.WithKind(model.ErrSerialization, fmt.Errorf("write result: %w", err))
	}
	return nil
}

// WriteJSON writes ens to path, replacing any existing file.
// Nothing is written when the result cannot be encoded.
func WriteJSON(ens model.PTEnsemble, path string) error {
	data, err := marshal(ens)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return model.WithKind(model.ErrSerialization, fmt.Errorf("write %s: %w", path, err))
	}
	return nil
}

func marshal(ens model.PTEnsemble) ([]byte, error) {
	data, err := json.MarshalIndent(ens.Normalize(), "", "  ")
	if err != nil {
		return nil, model.WithKind(model.ErrSerialization, fmt.Errorf("encode result: %w", err))
	}
	return append(data, '\n'), nil
}
