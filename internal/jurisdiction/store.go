package jurisdiction

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ableka/lumina/internal/domain"
)

// Store holds the active jurisdiction rule snapshot. Reads see a
// consistent snapshot; Replace swaps the whole set atomically so a
// reload is all-or-nothing.
type Store struct {
	mu       sync.RWMutex
	snapshot map[string]*Compiled
	version  string
	logger   *slog.Logger
	compiler *Compiler
}

// Compiled pairs a jurisdiction rule set with its pre-compiled
// screening programs. Version identifies the snapshot this entry was
// installed with; audit records produced against it carry that version,
// so a reload mid-check cannot stamp a record with thresholds it did
// not apply.
type Compiled struct {
	Rules     *domain.JurisdictionRules
	Screening []CompiledScreeningRule
	Version   string
}

// NewStore creates an empty store. Call Replace before serving checks.
func NewStore(logger *slog.Logger) (*Store, error) {
	compiler, err := NewCompiler()
	if err != nil {
		return nil, err
	}
	return &Store{
		snapshot: make(map[string]*Compiled),
		logger:   logger,
		compiler: compiler,
	}, nil
}

// Replace compiles and installs a new rule set wholesale. On any
// error the previous snapshot stays active.
func (s *Store) Replace(rules []*domain.JurisdictionRules) error {
	version, err := hashRules(rules)
	if err != nil {
		return err
	}

	next := make(map[string]*Compiled, len(rules))
	for _, jr := range rules {
		screening, err := s.compiler.CompileAll(jr.ScreeningRules)
		if err != nil {
			return &domain.ConfigError{
				File:   jr.Code,
				Reason: fmt.Sprintf("screening rules: %v", err),
			}
		}
		next[jr.Code] = &Compiled{Rules: jr, Screening: screening, Version: version}
	}

	s.mu.Lock()
	s.snapshot = next
	s.version = version
	s.mu.Unlock()

	codes := make([]string, 0, len(next))
	for code := range next {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	s.logger.Info("jurisdiction rules installed",
		"version", version,
		"jurisdictions", codes)

	return nil
}

// Get returns the compiled rule set for a jurisdiction code, or
// domain.ErrJurisdictionNotFound.
func (s *Store) Get(code string) (*Compiled, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.snapshot[code]
	if !ok {
		return nil, fmt.Errorf("jurisdiction %s: %w", code, domain.ErrJurisdictionNotFound)
	}
	return c, nil
}

// Version returns the hash of the active rule set. Results produced
// against this snapshot carry it for audit.
func (s *Store) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// List returns the active rule sets sorted by code.
func (s *Store) List() []*domain.JurisdictionRules {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.JurisdictionRules, 0, len(s.snapshot))
	for _, c := range s.snapshot {
		out = append(out, c.Rules)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Count returns the number of loaded jurisdictions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshot)
}

// hashRules derives a stable content version for a rule set. The
// rules are serialized in code order so the hash does not depend on
// load order.
func hashRules(rules []*domain.JurisdictionRules) (string, error) {
	sorted := make([]*domain.JurisdictionRules, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, jr := range sorted {
		if err := enc.Encode(jr); err != nil {
			return "", fmt.Errorf("hash rules: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:12], nil
}
