package resolve

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-etl/internal/model"
)

// Source supplies the canonical institutions and their aliases.
type Source interface {
	LoadInstitutions(ctx context.Context) ([]model.Institution, error)
	LoadAliases(ctx context.Context) ([]model.InstitutionAlias, error)
}

// Registry is an immutable name→institution lookup built once per run.
// Canonical names always win over aliases that normalize to the same key.
type Registry struct {
	canonical map[string]int64
	aliases   map[string]int64
}

// NewRegistry builds a registry from in-memory records. Later records with the
// same normalized key overwrite earlier ones within each map.
func NewRegistry(institutions []model.Institution, aliases []model.InstitutionAlias) *Registry {
	r := &Registry{
		canonical: make(map[string]int64, len(institutions)),
		aliases:   make(map[string]int64, len(aliases)),
	}
	for _, inst := range institutions {
		if key := NormalizeName(inst.Name); key != "" {
			r.canonical[key] = inst.ID
		}
	}
	for _, a := range aliases {
		if key := NormalizeName(a.Alias); key != "" {
			r.aliases[key] = a.InstitutionID
		}
	}
	return r
}

// Load reads institutions and aliases from src and builds a registry.
func Load(ctx context.Context, src Source) (*Registry, error) {
	insts, err := src.LoadInstitutions(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: load institutions")
	}
	aliases, err := src.LoadAliases(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: load aliases")
	}

	r := NewRegistry(insts, aliases)
	zap.L().Debug("resolve: registry loaded",
		zap.Int("institutions", len(r.canonical)),
		zap.Int("aliases", len(r.aliases)),
	)
	return r, nil
}

// Lookup resolves a free-text name. The second result is false when neither
// the canonical map nor the alias map has the normalized key.
func (r *Registry) Lookup(name string) (int64, bool) {
	if r == nil {
		return 0, false
	}
	key := NormalizeName(name)
	if key == "" {
		return 0, false
	}
	if id, ok := r.canonical[key]; ok {
		return id, true
	}
	id, ok := r.aliases[key]
	return id, ok
}

// Len returns the number of distinct canonical and alias keys.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.canonical) + len(r.aliases)
}
