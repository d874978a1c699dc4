package pipeline

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"log/slog"

	"github.com/ppiankov/ugp/internal/cache"
	"github.com/ppiankov/ugp/internal/model"
)

func init() {
	// interface values nested in provenance and summary maps
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// cacheRequest is everything that determines a deterministic result
type cacheRequest struct {
	Engine     string              `json:"engine"`
	DataDir    string              `json:"data_dir"`
	Dataset    model.ThermoDataset `json:"dataset"`
	Bootstrap  bool                `json:"bootstrap"`
	Iterations int                 `json:"iterations,omitempty"`
	Confidence float64             `json:"confidence,omitempty"`
	Seed       uint64              `json:"seed,omitempty"`
}

// cacheKey returns the key for a request and whether its result may be cached.
// Unseeded bootstraps draw fresh randomness on every run and are never cached.
func (p *Pipeline) cacheKey(name string, ds model.ThermoDataset, cfg model.Config, unc *model.UncertaintyConfig, bootstrap bool) (string, bool) {
	if p.cache == nil {
		return "", false
	}

	req := cacheRequest{Engine: name, DataDir: cfg.DataDir, Dataset: ds, Bootstrap: bootstrap}
	if bootstrap {
		if unc.Seed == nil {
			return "", false
		}
		req.Iterations = unc.Iterations
		req.Confidence = unc.Confidence
		req.Seed = *unc.Seed
	}

	// map keys are sorted by encoding/json, so equal requests encode identically
	data, err := json.Marshal(req)
	if err != nil {
		return "", false
	}
	return cache.Key([]byte(name), data), true
}

func (p *Pipeline) lookup(key string) (model.PTEnsemble, bool) {
	data, ok := p.cache.Get(key)
	if !ok {
		return model.PTEnsemble{}, false
	}

	var ens model.PTEnsemble
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ens); err != nil {
		_ = p.cache.Delete(key)
		return model.PTEnsemble{}, false
	}

	ens = ens.Normalize()
	ens.Diagnostics[model.DiagCacheHit] = true
	return ens, true
}

// store caches ens. Failures are logged; the run itself already succeeded.
func (p *Pipeline) store(key string, ens model.PTEnsemble, logger *slog.Logger) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ens); err != nil {
		logger.Warn("cache encode failed", "error", err)
		return
	}
	if err := p.cache.Set(key, buf.Bytes(), p.cacheTTL); err != nil {
		logger.Warn("cache write failed", "error", err)
	}
}
