// pkg/clients/memory.go
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DevClientID is the registration available when no seed is configured.
const DevClientID = "client_123"

// MemoryProvider keeps registrations in process memory.
type MemoryProvider struct {
	mu   sync.RWMutex
	byID map[string]Registration
}

// NewMemoryProvider builds a provider holding exactly regs.
func NewMemoryProvider(regs ...Registration) *MemoryProvider {
	p := &MemoryProvider{byID: map[string]Registration{}}
	for _, r := range regs {
		p.byID[r.ClientID] = r
	}
	return p
}

// Put inserts or replaces a registration (admin / test hook).
func (m *MemoryProvider) Put(r Registration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[r.ClientID] = r
}

// NewMemoryProviderFromSeed loads registrations from a YAML file, else from a JSON seed,
// else falls back to the dev client with localhost and netlify.app domains.
func NewMemoryProviderFromSeed(file, seedJSON string, log *zap.SugaredLogger) (*MemoryProvider, error) {
	var entries []seedEntry
	switch {
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read clients file: %w", err)
		}
		var doc struct {
			Clients []seedEntry `yaml:"clients"`
		}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse clients file: %w", err)
		}
		entries = doc.Clients
	case seedJSON != "":
		if err := json.Unmarshal([]byte(seedJSON), &entries); err != nil {
			return nil, fmt.Errorf("parse CLIENT_SEED_JSON: %w", err)
		}
	default:
		if log != nil {
			log.Warnw("no client seed configured, registering dev client", "clientId", DevClientID)
		}
		return NewMemoryProvider(DevRegistration()), nil
	}
	regs := make([]Registration, 0, len(entries))
	for _, e := range entries {
		if e.ClientID == "" {
			return nil, fmt.Errorf("client seed entry without clientId")
		}
		regs = append(regs, e.registration())
	}
	return NewMemoryProvider(regs...), nil
}

// DevRegistration is the local development integrator.
func DevRegistration() Registration {
	return Registration{
		ClientID:          DevClientID,
		Name:              "Test Client",
		Active:            true,
		AuthorizedDomains: []string{"localhost:5173", "*.netlify.app"},
		TokenHash:         HashClientToken("dev-client-token"),
	}
}

func (m *MemoryProvider) Lookup(ctx context.Context, clientID string) (Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.byID[clientID]; ok {
		return r, nil
	}
	return Registration{}, ErrClientNotFound
}

func (m *MemoryProvider) List(ctx context.Context) ([]Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Registration, 0, len(m.byID))
	for _, r := range m.byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}
