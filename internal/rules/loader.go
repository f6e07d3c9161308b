package rules

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coaching-health-scorer/internal/domain"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

const (
	defaultNAQFile           = "defaults/naq.yaml"
	defaultMicronutrientFile = "defaults/micronutrients.yaml"
)

// Load reads both rule sets. Empty paths select the embedded defaults.
func Load(cfg domain.RulesConfig) (*RuleSet, error) {
	naq, err := LoadNAQ(cfg.NAQPath)
	if err != nil {
		return nil, err
	}
	micro, err := LoadMicronutrients(cfg.MicronutrientPath)
	if err != nil {
		return nil, err
	}
	return &RuleSet{NAQ: naq, Micronutrient: micro}, nil
}

// Default returns the embedded rule sets. They are validated by the package tests, so a failure
// here is a build defect.
func Default() *RuleSet {
	rs, err := Load(domain.RulesConfig{})
	if err != nil {
		panic(fmt.Sprintf("embedded rules invalid: %v", err))
	}
	return rs
}

// LoadNAQ reads NAQ rules from path, or the embedded defaults when path is empty.
func LoadNAQ(path string) (*NAQRules, error) {
	data, err := readRuleFile(path, defaultNAQFile)
	if err != nil {
		return nil, err
	}
	return ParseNAQ(data)
}

// LoadMicronutrients reads micronutrient rules from path, or the embedded defaults when path is empty.
func LoadMicronutrients(path string) (*MicronutrientRules, error) {
	data, err := readRuleFile(path, defaultMicronutrientFile)
	if err != nil {
		return nil, err
	}
	return ParseMicronutrients(data)
}

// ParseNAQ validates and indexes a NAQ rule document.
func ParseNAQ(data []byte) (*NAQRules, error) {
	if err := validateDocument(schemaNAQ, data); err != nil {
		return nil, domain.NewConfigError("rules", "naq", err.Error())
	}

	var r NAQRules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, domain.NewConfigError("rules", "naq", fmt.Sprintf("decode: %v", err))
	}
	if err := r.Index(); err != nil {
		return nil, err
	}
	r.Digest = digest(data)
	return &r, nil
}

// ParseMicronutrients validates and indexes a micronutrient rule document.
func ParseMicronutrients(data []byte) (*MicronutrientRules, error) {
	if err := validateDocument(schemaMicronutrient, data); err != nil {
		return nil, domain.NewConfigError("rules", "micronutrients", err.Error())
	}

	var r MicronutrientRules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, domain.NewConfigError("rules", "micronutrients", fmt.Sprintf("decode: %v", err))
	}
	if err := r.Index(); err != nil {
		return nil, err
	}
	r.Digest = digest(data)
	return &r, nil
}

func readRuleFile(path, fallback string) ([]byte, error) {
	if path == "" {
		data, err := defaultsFS.ReadFile(fallback)
		if err != nil {
			return nil, fmt.Errorf("read embedded rules %s: %w", fallback, err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return data, nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}
