package rules

import (
	"errors"
	"fmt"

	"github.com/coaching-health-scorer/internal/domain"
)

// QuestionCode returns the catalog code of the n-th (1-based) question of a section.
func QuestionCode(category string, n int) string {
	return fmt.Sprintf("%s_%02d", category, n)
}

// Index builds the lookup tables and checks internal consistency. Parse functions call it; rules
// assembled in code must call it before use.
func (r *NAQRules) Index() error {
	var errs []error

	r.sectionIndex = make(map[string]int, len(r.Sections))
	r.catalog = make(map[string]string)
	for i, s := range r.Sections {
		if _, dup := r.sectionIndex[s.Category]; dup {
			errs = append(errs, domain.NewConfigError("section", s.Category, "duplicate category"))
			continue
		}
		if !(0 <= s.LowPriorityCutoff && s.LowPriorityCutoff <= s.MediumPriorityCutoff &&
			s.MediumPriorityCutoff <= s.HighPriorityCutoff && s.HighPriorityCutoff <= s.MaxPossibleScore()) {
			errs = append(errs, domain.NewConfigError("section", s.Category, fmt.Sprintf(
				"cutoffs must satisfy 0 <= low (%d) <= medium (%d) <= high (%d) <= %d",
				s.LowPriorityCutoff, s.MediumPriorityCutoff, s.HighPriorityCutoff, s.MaxPossibleScore())))
		}
		r.sectionIndex[s.Category] = i
		for n := 1; n <= s.QuestionCount; n++ {
			r.catalog[QuestionCode(s.Category, n)] = s.Category
		}
	}

	r.rankIndex = make(map[string]int, len(r.Hierarchy))
	for i, h := range r.Hierarchy {
		idx, ok := r.sectionIndex[h.Category]
		if !ok {
			errs = append(errs, domain.NewConfigError("hierarchy", h.Category, "category has no section"))
			continue
		}
		if !r.Sections[idx].Symptomatic {
			errs = append(errs, domain.NewConfigError("hierarchy", h.Category, "non-symptomatic section cannot be ranked"))
		}
		if _, dup := r.rankIndex[h.Category]; dup {
			errs = append(errs, domain.NewConfigError("hierarchy", h.Category, "listed more than once"))
			continue
		}
		r.rankIndex[h.Category] = i
	}

	if _, ok := r.sectionIndex[r.Override.Category]; !ok {
		errs = append(errs, domain.NewConfigError("override", r.Override.Category, "category has no section"))
	}

	return errors.Join(errs...)
}

// Section returns the configuration of a category.
func (r *NAQRules) Section(category string) (SectionConfig, bool) {
	idx, ok := r.sectionIndex[category]
	if !ok {
		return SectionConfig{}, false
	}
	return r.Sections[idx], true
}

// CategoryOf resolves a question code through the catalog.
func (r *NAQRules) CategoryOf(code string) (string, bool) {
	category, ok := r.catalog[code]
	return category, ok
}

// Rank is the position of a category in the treatment hierarchy. Categories missing from the
// hierarchy rank after every listed one.
func (r *NAQRules) Rank(category string) int {
	if rank, ok := r.rankIndex[category]; ok {
		return rank
	}
	return len(r.Hierarchy)
}

// CatalogSize is the number of questions across all sections.
func (r *NAQRules) CatalogSize() int {
	return len(r.catalog)
}
