package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AnswerValue is the normalised value of one questionnaire answer.
// The set of implementations is closed: Ordinal, Choice, MultiChoice, Presence and FreeText.
type AnswerValue interface {
	answerValue()
}

// Ordinal is a 0-3 symptom intensity.
type Ordinal int

// Choice is a single selected label.
type Choice string

// MultiChoice is the set of labels selected on a multi-select question.
type MultiChoice []string

// Presence is an explicit boolean answer.
type Presence bool

// FreeText is an unstructured text answer.
type FreeText string

func (Ordinal) answerValue()     {}
func (Choice) answerValue()      {}
func (MultiChoice) answerValue() {}
func (Presence) answerValue()    {}
func (FreeText) answerValue()    {}

// Contains reports whether label was selected.
func (m MultiChoice) Contains(label string) bool {
	for _, l := range m {
		if l == label {
			return true
		}
	}
	return false
}

// Answer is one answered question of a submission, joined with the question's code and type.
type Answer struct {
	QuestionCode string       `json:"question_code"`
	QuestionType QuestionType `json:"question_type"`
	Value        AnswerValue  `json:"-"`
}

// selectedEnvelope is the {"selected": ...} shape written by the questionnaire front end.
type selectedEnvelope struct {
	Selected json.RawMessage `json:"selected"`
}

// DecodeAnswerValue converts a stored raw answer into an AnswerValue using the question's declared
// type. Accepted raw shapes are a number, a string, a bool, a list of strings, or an object with a
// "selected" key holding any of those.
func DecodeAnswerValue(qt QuestionType, raw json.RawMessage) (AnswerValue, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("empty answer value for %s question", qt)
	}

	if raw[0] == '{' {
		var env selectedEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decoding selected envelope: %w", err)
		}
		if len(env.Selected) == 0 {
			return nil, fmt.Errorf("answer object has no selected value")
		}
		return DecodeAnswerValue(qt, env.Selected)
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decoding answer value: %w", err)
	}

	switch qt {
	case QUESTION_SCALE_0_3:
		return decodeOrdinal(generic)
	case QUESTION_MULTI_SELECT:
		return decodeMulti(generic)
	case QUESTION_TEXT:
		if s, ok := generic.(string); ok {
			return FreeText(s), nil
		}
		return FreeText(string(raw)), nil
	case QUESTION_YES_NO:
		if b, ok := generic.(bool); ok {
			return Presence(b), nil
		}
		return decodeChoice(generic)
	case QUESTION_FREQUENCY, QUESTION_PORTION, QUESTION_SELECT_ONE:
		return decodeChoice(generic)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidQuestionType, qt)
	}
}

// EncodeAnswerValue is the inverse of DecodeAnswerValue for storage and export.
func EncodeAnswerValue(v AnswerValue) (json.RawMessage, error) {
	switch val := v.(type) {
	case Ordinal:
		return json.Marshal(int(val))
	case Choice:
		return json.Marshal(map[string]string{"selected": string(val)})
	case MultiChoice:
		return json.Marshal([]string(val))
	case Presence:
		return json.Marshal(bool(val))
	case FreeText:
		return json.Marshal(string(val))
	default:
		return nil, fmt.Errorf("unsupported answer value %T", v)
	}
}

const maxOrdinal = math.MaxInt32

func decodeOrdinal(v interface{}) (AnswerValue, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("ordinal answer %v is not a whole number", n)
		}
		// Anything past the scale is out of range either way; keep it representable.
		return Ordinal(math.Max(math.Min(n, maxOrdinal), -maxOrdinal)), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return nil, fmt.Errorf("ordinal answer %q is not a number", n)
		}
		return Ordinal(i), nil
	default:
		return nil, fmt.Errorf("ordinal answer has unsupported shape %T", v)
	}
}

func decodeChoice(v interface{}) (AnswerValue, error) {
	switch c := v.(type) {
	case string:
		return Choice(c), nil
	case float64:
		return Choice(strconv.FormatFloat(c, 'f', -1, 64)), nil
	default:
		return nil, fmt.Errorf("choice answer has unsupported shape %T", v)
	}
}

func decodeMulti(v interface{}) (AnswerValue, error) {
	switch c := v.(type) {
	case []interface{}:
		labels := make(MultiChoice, 0, len(c))
		for _, item := range c {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("multi-select entry has unsupported shape %T", item)
			}
			labels = append(labels, s)
		}
		return labels, nil
	case string:
		return MultiChoice{c}, nil
	default:
		return nil, fmt.Errorf("multi-select answer has unsupported shape %T", v)
	}
}

type answerJSON struct {
	QuestionCode string          `json:"question_code"`
	QuestionType QuestionType    `json:"question_type"`
	Value        json.RawMessage `json:"value"`
}

// MarshalJSON writes the answer with its value in stored form.
func (a Answer) MarshalJSON() ([]byte, error) {
	raw, err := EncodeAnswerValue(a.Value)
	if err != nil {
		return nil, fmt.Errorf("encoding answer %s: %w", a.QuestionCode, err)
	}
	return json.Marshal(answerJSON{QuestionCode: a.QuestionCode, QuestionType: a.QuestionType, Value: raw})
}

// UnmarshalJSON reads an answer in stored form, decoding the value by question type.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var aj answerJSON
	if err := json.Unmarshal(data, &aj); err != nil {
		return err
	}
	value, err := DecodeAnswerValue(aj.QuestionType, aj.Value)
	if err != nil {
		return fmt.Errorf("answer %s: %w", aj.QuestionCode, err)
	}
	a.QuestionCode = aj.QuestionCode
	a.QuestionType = aj.QuestionType
	a.Value = value
	return nil
}
