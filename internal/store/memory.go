package store

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-etl/internal/model"
)

// MemoryStore is an in-process Store for dry runs and tests. It mirrors the
// Postgres uniqueness rules: filings and institutions are unique on
// (source, external_id) and raw payloads are written once per filing.
type MemoryStore struct {
	mu           sync.Mutex
	state        map[string]model.EtlState
	runs         []model.EtlRun
	institutions []model.Institution
	aliases      []model.InstitutionAlias
	filings      []model.Filing
	raw          map[int64]json.RawMessage
	holdings     []model.NormalizedHolding
	companies    map[string]model.KRCompany
}

var _ Store = (*MemoryStore)(nil)

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		state:     make(map[string]model.EtlState),
		raw:       make(map[int64]json.RawMessage),
		companies: make(map[string]model.KRCompany),
	}
}

// AddInstitution registers a canonical institution with optional aliases and
// returns its id.
func (m *MemoryStore) AddInstitution(name string, aliases ...string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.institutions) + 1)
	m.institutions = append(m.institutions, model.Institution{ID: id, Name: name, Active: true})
	for _, a := range aliases {
		m.aliases = append(m.aliases, model.InstitutionAlias{InstitutionID: id, Alias: a})
	}
	return id
}

// GetState returns the watermark stored under key.
func (m *MemoryStore) GetState(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.state[key]
	return st.Value, ok, nil
}

// SetState writes a watermark.
func (m *MemoryStore) SetState(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[key] = model.EtlState{Key: key, Value: value, UpdatedAt: Clock().UTC()}
	return nil
}

// ListState returns every watermark sorted by key.
func (m *MemoryStore) ListState(_ context.Context) ([]model.EtlState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.EtlState, 0, len(m.state))
	for _, st := range m.state {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// StartRun records a new run in the running state.
func (m *MemoryStore) StartRun(_ context.Context) (*model.EtlRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := model.EtlRun{ID: uuid.NewString(), Status: model.EtlRunRunning, Message: "started", StartedAt: Clock().UTC()}
	m.runs = append(m.runs, run)
	return &run, nil
}

// FinishRun closes a running run with its terminal status.
func (m *MemoryStore) FinishRun(_ context.Context, id string, status model.EtlRunStatus, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == id {
			t := Clock().UTC()
			m.runs[i].Status = status
			m.runs[i].Message = message
			m.runs[i].FinishedAt = &t
			return nil
		}
	}
	return eris.Errorf("store: finish run %s: not found", id)
}

// ListRuns returns the newest runs first.
func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.EtlRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.runs)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LoadInstitutions returns the active institutions.
func (m *MemoryStore) LoadInstitutions(_ context.Context) ([]model.Institution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Institution
	for _, inst := range m.institutions {
		if inst.Active {
			out = append(out, inst)
		}
	}
	return out, nil
}

// LoadAliases returns every institution alias.
func (m *MemoryStore) LoadAliases(_ context.Context) ([]model.InstitutionAlias, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.aliases), nil
}

// UpsertInstitutions inserts or updates institutions keyed by source and
// external id, skipping rows without one, and returns their ids.
func (m *MemoryStore) UpsertInstitutions(_ context.Context, source string, insts []model.Institution) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64)
	for _, inst := range insts {
		if inst.ExternalID == "" {
			continue
		}
		inst.Source = source
		idx := slices.IndexFunc(m.institutions, func(i model.Institution) bool {
			return i.Source == source && i.ExternalID == inst.ExternalID
		})
		if idx >= 0 {
			inst.ID = m.institutions[idx].ID
			m.institutions[idx] = inst
		} else {
			inst.ID = int64(len(m.institutions) + 1)
			m.institutions = append(m.institutions, inst)
		}
		out[inst.ExternalID] = inst.ID
	}
	return out, nil
}

// UpsertKRCompanies stores companies keyed by corp code.
func (m *MemoryStore) UpsertKRCompanies(_ context.Context, companies []model.KRCompany) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range companies {
		m.companies[c.CorpCode] = c
	}
	return int64(len(companies)), nil
}

// UpsertFiling inserts or updates a filing keyed by source and external id.
func (m *MemoryStore) UpsertFiling(_ context.Context, f model.Filing) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertFilingLocked(f), nil
}

func (m *MemoryStore) upsertFilingLocked(f model.Filing) int64 {
	idx := slices.IndexFunc(m.filings, func(x model.Filing) bool {
		return x.Source == f.Source && x.ExternalID == f.ExternalID
	})
	if idx >= 0 {
		f.ID = m.filings[idx].ID
		m.filings[idx] = f
		return f.ID
	}
	f.ID = int64(len(m.filings) + 1)
	m.filings = append(m.filings, f)
	return f.ID
}

// UpsertFilings upserts a batch of filings and maps external ids to ids.
func (m *MemoryStore) UpsertFilings(_ context.Context, source model.Source, filings []model.Filing) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(filings))
	for _, f := range filings {
		if f.ExternalID == "" {
			continue
		}
		f.Source = source
		out[f.ExternalID] = m.upsertFilingLocked(f)
	}
	return out, nil
}

// InsertRawPayload keeps the first payload stored for a filing.
func (m *MemoryStore) InsertRawPayload(_ context.Context, p model.RawPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.raw[p.FilingID]; !ok {
		m.raw[p.FilingID] = slices.Clone(p.Payload)
	}
	return nil
}

// ReplaceHoldings swaps a filing's holdings for rows.
func (m *MemoryStore) ReplaceHoldings(_ context.Context, filingID int64, rows []model.NormalizedHolding) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(map[int64]bool{filingID: true})
	m.holdings = append(m.holdings, rows...)
	return int64(len(rows)), nil
}

// DeleteHoldings removes the holdings of the given filings.
func (m *MemoryStore) DeleteHoldings(_ context.Context, filingIDs []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[int64]bool, len(filingIDs))
	for _, id := range filingIDs {
		set[id] = true
	}
	return m.deleteLocked(set), nil
}

func (m *MemoryStore) deleteLocked(ids map[int64]bool) int64 {
	before := len(m.holdings)
	m.holdings = slices.DeleteFunc(m.holdings, func(h model.NormalizedHolding) bool { return ids[h.FilingID] })
	return int64(before - len(m.holdings))
}

// AppendHoldings adds rows without touching existing holdings.
func (m *MemoryStore) AppendHoldings(_ context.Context, rows []model.NormalizedHolding) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings = append(m.holdings, rows...)
	return int64(len(rows)), nil
}

// Migrate is a no-op.
func (m *MemoryStore) Migrate(context.Context) error { return nil }

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Filings returns a copy of the stored filings.
func (m *MemoryStore) Filings() []model.Filing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.filings)
}

// Holdings returns a copy of the stored normalized holdings.
func (m *MemoryStore) Holdings() []model.NormalizedHolding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.holdings)
}

// RawPayload returns the stored payload of a filing.
func (m *MemoryStore) RawPayload(filingID int64) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.raw[filingID]
	return p, ok
}

// KRCompanies returns the registry sorted by corp code.
func (m *MemoryStore) KRCompanies() []model.KRCompany {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.KRCompany, 0, len(m.companies))
	for _, c := range m.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CorpCode < out[j].CorpCode })
	return out
}

// Institutions returns a copy of every stored institution.
func (m *MemoryStore) Institutions() []model.Institution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.institutions)
}
