// Package jurisdiction loads, validates, and serves per-jurisdiction
// compliance rule sets from YAML files, with optional hot reload.
package jurisdiction

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ableka/lumina/internal/domain"
)

// ruleFile is the on-disk YAML shape of one jurisdiction file.
type ruleFile struct {
	Code                string   `yaml:"code"`
	KYCDocRequirements  []string `yaml:"kyc_doc_requirements"`
	AMLSanctionsLists   []string `yaml:"aml_sanctions_lists"`
	VelocityWindowSecs  int      `yaml:"velocity_window_seconds"`
	VelocityThreshold   string   `yaml:"velocity_threshold_amount"`
	RiskWeights         weights  `yaml:"risk_weights"`
	DecisionThresholds  bounds   `yaml:"decision_thresholds"`
	ScreeningRules      []rule   `yaml:"screening_rules"`
}

type weights struct {
	KYC      float64 `yaml:"kyc"`
	AML      float64 `yaml:"aml"`
	Velocity float64 `yaml:"velocity"`
}

type bounds struct {
	ApproveBelow int `yaml:"approve_below"`
	RejectAbove  int `yaml:"reject_above"`
}

type rule struct {
	ID         string `yaml:"id"`
	Expression string `yaml:"expression"`
	Flag       string `yaml:"flag"`
	Reason     string `yaml:"reason"`
}

// LoadDir parses every *.yaml file in dir into jurisdiction rule sets.
// A single invalid file fails the whole load; a partially applied rule
// set is worse than keeping the previous one.
func LoadDir(dir string) ([]*domain.JurisdictionRules, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &domain.ConfigError{File: dir, Reason: "cannot read jurisdictions directory", Err: err}
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, &domain.ConfigError{File: dir, Reason: "no jurisdiction files found"}
	}

	seen := make(map[string]string, len(files))
	rules := make([]*domain.JurisdictionRules, 0, len(files))
	for _, path := range files {
		jr, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[jr.Code]; ok {
			return nil, &domain.ConfigError{
				File:   path,
				Reason: fmt.Sprintf("jurisdiction %s already defined in %s", jr.Code, prev),
			}
		}
		seen[jr.Code] = path
		rules = append(rules, jr)
	}

	return rules, nil
}

func loadFile(path string) (*domain.JurisdictionRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{File: path, Reason: "cannot read file", Err: err}
	}

	var rf ruleFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil {
		return nil, &domain.ConfigError{File: path, Reason: "invalid YAML", Err: err}
	}

	jr, err := rf.toDomain()
	if err != nil {
		return nil, &domain.ConfigError{File: path, Reason: err.Error()}
	}
	if err := jr.Validate(); err != nil {
		return nil, &domain.ConfigError{File: path, Reason: err.Error()}
	}

	return jr, nil
}

func (rf *ruleFile) toDomain() (*domain.JurisdictionRules, error) {
	threshold := decimal.Zero
	if rf.VelocityThreshold != "" {
		var err error
		threshold, err = decimal.NewFromString(rf.VelocityThreshold)
		if err != nil {
			return nil, fmt.Errorf("velocity_threshold_amount %q is not a decimal", rf.VelocityThreshold)
		}
	}

	docs := make([]domain.DocumentType, 0, len(rf.KYCDocRequirements))
	for _, d := range rf.KYCDocRequirements {
		docs = append(docs, domain.DocumentType(d))
	}
	lists := make([]domain.ListIdentifier, 0, len(rf.AMLSanctionsLists))
	for _, l := range rf.AMLSanctionsLists {
		lists = append(lists, domain.ListIdentifier(l))
	}

	screening := make([]domain.ScreeningRule, 0, len(rf.ScreeningRules))
	for _, r := range rf.ScreeningRules {
		if r.ID == "" || r.Expression == "" {
			return nil, fmt.Errorf("screening rule requires id and expression")
		}
		screening = append(screening, domain.ScreeningRule{
			ID:         r.ID,
			Expression: r.Expression,
			Flag:       domain.Flag(r.Flag),
			Reason:     r.Reason,
		})
	}

	return &domain.JurisdictionRules{
		Code:                    strings.ToUpper(rf.Code),
		KYCDocRequirements:      docs,
		AMLSanctionsLists:       lists,
		VelocityWindowSeconds:   rf.VelocityWindowSecs,
		VelocityThresholdAmount: threshold,
		RiskWeights: domain.RiskWeights{
			KYC:      rf.RiskWeights.KYC,
			AML:      rf.RiskWeights.AML,
			Velocity: rf.RiskWeights.Velocity,
		},
		DecisionThresholds: domain.DecisionThresholds{
			ApproveBelow: rf.DecisionThresholds.ApproveBelow,
			RejectAbove:  rf.DecisionThresholds.RejectAbove,
		},
		ScreeningRules: screening,
	}, nil
}
