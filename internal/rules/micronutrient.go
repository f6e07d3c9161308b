package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coaching-health-scorer/internal/domain"
)

// Index builds the catalog and label lookups and checks every nutrient against them.
func (r *MicronutrientRules) Index() error {
	var errs []error

	r.tables = make(map[string]map[string]float64, len(r.LabelTables))
	for name, entries := range r.LabelTables {
		table := make(map[string]float64, len(entries))
		for _, e := range entries {
			if _, dup := table[e.Label]; dup {
				errs = append(errs, domain.NewConfigError("label_table", name, fmt.Sprintf("duplicate label %q", e.Label)))
			}
			table[e.Label] = e.Points
		}
		r.tables[name] = table
	}
	for _, b := range r.SelectBindings {
		if _, ok := r.tables[b.Table]; !ok {
			errs = append(errs, domain.NewConfigError("select_binding", b.Code+b.Prefix, fmt.Sprintf("unknown label table %q", b.Table)))
		}
	}

	r.catalog = make(map[string]*Question, len(r.Questions))
	for i := range r.Questions {
		q := &r.Questions[i]
		if _, dup := r.catalog[q.Code]; dup {
			errs = append(errs, domain.NewConfigError("question", q.Code, "duplicate code"))
			continue
		}
		switch q.Type {
		case domain.QUESTION_FREQUENCY:
			q.Table = TableFrequency
		case domain.QUESTION_PORTION:
			q.Table = TablePortion
		case domain.QUESTION_SELECT_ONE:
			q.Table = r.bindingFor(q.Code)
		}
		if (q.Type == domain.QUESTION_SELECT_ONE || q.Type == domain.QUESTION_MULTI_SELECT) && len(q.Options) == 0 {
			errs = append(errs, domain.NewConfigError("question", q.Code, "choice question has no options"))
		}
		r.catalog[q.Code] = q
	}

	r.nutrientIdx = make(map[string]int, len(r.Nutrients))
	for i, n := range r.Nutrients {
		if _, dup := r.nutrientIdx[n.Code]; dup {
			errs = append(errs, domain.NewConfigError("nutrient", n.Code, "duplicate code"))
			continue
		}
		r.nutrientIdx[n.Code] = i
		errs = append(errs, r.checkNutrient(n)...)
	}

	return errors.Join(errs...)
}

// bindingFor resolves a select_one question to its label table. Exact code bindings win over
// prefix bindings; among prefixes the longest wins.
func (r *MicronutrientRules) bindingFor(code string) string {
	table, best := "", -1
	for _, b := range r.SelectBindings {
		if b.Code != "" && b.Code == code {
			return b.Table
		}
		if b.Prefix != "" && strings.HasPrefix(code, b.Prefix) && len(b.Prefix) > best {
			table, best = b.Table, len(b.Prefix)
		}
	}
	return table
}

func (r *MicronutrientRules) checkNutrient(n NutrientConfig) []error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, domain.NewConfigError("nutrient", n.Code, fmt.Sprintf(format, args...)))
	}

	for _, w := range n.Intake {
		q, ok := r.catalog[w.Code]
		switch {
		case !ok:
			fail("intake question %q not in catalog", w.Code)
		case q.Table == "":
			fail("intake question %q (%s) has no label table", w.Code, q.Type)
		}
	}

	for _, s := range n.Symptoms {
		if q, ok := r.catalog[s.Code]; !ok {
			fail("symptom question %q not in catalog", s.Code)
		} else if q.Type != domain.QUESTION_YES_NO {
			fail("symptom question %q must be yes_no, is %s", s.Code, q.Type)
		}
	}

	for _, c := range n.ClusterRules {
		for _, code := range c.Conditions {
			if q, ok := r.catalog[code]; !ok || q.Type != domain.QUESTION_YES_NO {
				fail("cluster %q condition %q is not a yes_no catalog question", c.Name, code)
			}
		}
	}

	for _, m := range n.RiskModifiers {
		q, ok := r.catalog[m.Code]
		if !ok {
			fail("risk modifier %q not in catalog", m.Code)
			continue
		}
		switch q.Type {
		case domain.QUESTION_YES_NO:
			if len(m.PresentWhen) > 0 || m.Option != "" {
				fail("risk modifier %q is yes_no and takes no labels", m.Code)
			}
		case domain.QUESTION_SELECT_ONE:
			if len(m.PresentWhen) == 0 {
				fail("risk modifier %q needs present_when labels", m.Code)
			}
			for _, label := range m.PresentWhen {
				if !containsLabel(q.Options, label) {
					fail("risk modifier %q label %q is not an option", m.Code, label)
				}
			}
		case domain.QUESTION_MULTI_SELECT:
			if !containsLabel(q.Options, m.Option) {
				fail("risk modifier %q option %q is not an option", m.Code, m.Option)
			}
		default:
			fail("risk modifier %q has unsupported type %s", m.Code, q.Type)
		}
	}
	return errs
}

func containsLabel(options []string, label string) bool {
	for _, o := range options {
		if o == label {
			return true
		}
	}
	return false
}

// Question looks up a catalog entry.
func (r *MicronutrientRules) Question(code string) (Question, bool) {
	q, ok := r.catalog[code]
	if !ok {
		return Question{}, false
	}
	return *q, true
}

// Points maps a label through the question's label table.
func (r *MicronutrientRules) Points(q Question, label string) (float64, bool) {
	table, ok := r.tables[q.Table]
	if !ok {
		return 0, false
	}
	points, ok := table[label]
	return points, ok
}

// Nutrient returns the configuration of one nutrient.
func (r *MicronutrientRules) Nutrient(code string) (NutrientConfig, bool) {
	idx, ok := r.nutrientIdx[code]
	if !ok {
		return NutrientConfig{}, false
	}
	return r.Nutrients[idx], true
}
