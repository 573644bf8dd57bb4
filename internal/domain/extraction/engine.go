// Package extraction turns an analysis block graph into typed candidate
// fields using two strategies: labeled form key/value pairs and regex
// patterns over the flattened text.
package extraction

import (
	"strings"

	"github.com/foresight/docintel/internal/domain/analysis"
)

const (
	textConfidence         = 0.8
	fallbackFormConfidence = 0.7
)

// Result holds every candidate field plus the text the patterns ran over.
type Result struct {
	Fields   []Field `json:"fields"`
	FullText string  `json:"full_text"`
}

// Engine is stateless and safe for concurrent use.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Extract runs both strategies and merges their output. Fields from the
// form graph come first; exact (category, value) repeats are dropped, but
// disagreeing values for one category are all kept.
func (e *Engine) Extract(blocks []analysis.Block, profile Profile) Result {
	text := FullText(blocks)
	fields := FormFields(blocks)
	fields = append(fields, TextFields(text, profile)...)
	return Result{Fields: Dedupe(fields), FullText: text}
}

// FullText joins the text of every LINE block with single spaces.
func FullText(blocks []analysis.Block) string {
	var lines []string
	for _, b := range blocks {
		if b.Type != analysis.BlockLine {
			continue
		}
		if t := strings.TrimSpace(b.Text); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, " ")
}

// FormFields walks KEY nodes to their VALUE nodes and maps the key label
// through the label dictionary. Unknown labels are dropped.
func FormFields(blocks []analysis.Block) []Field {
	index := make(map[string]*analysis.Block, len(blocks))
	for i := range blocks {
		index[blocks[i].ID] = &blocks[i]
	}

	var fields []Field
	for i := range blocks {
		key := &blocks[i]
		if key.Type != analysis.BlockKeyValueSet || !key.HasEntity(analysis.EntityKey) {
			continue
		}
		valueIDs := key.Related(analysis.RelValue)
		if len(valueIDs) == 0 {
			continue
		}
		value, ok := index[valueIDs[0]]
		if !ok {
			continue
		}

		category, ok := CategoryForLabel(blockText(key, index))
		if !ok {
			continue
		}
		v := strings.TrimSpace(blockText(value, index))
		if v == "" {
			continue
		}

		conf := fallbackFormConfidence
		if key.Confidence > 0 {
			conf = clamp01(key.Confidence / 100)
		}
		var box *analysis.BoundingBox
		if key.Box != nil {
			bb := *key.Box
			box = &bb
		}
		fields = append(fields, Field{
			Category:    category,
			Value:       v,
			Confidence:  conf,
			BoundingBox: box,
			Source:      SourceForm,
		})
	}
	return fields
}

// blockText returns a block's own text, or its WORD children joined by spaces.
func blockText(b *analysis.Block, index map[string]*analysis.Block) string {
	if b.Text != "" {
		return b.Text
	}
	var words []string
	for _, id := range b.Related(analysis.RelChild) {
		child, ok := index[id]
		if !ok || child.Type != analysis.BlockWord || child.Text == "" {
			continue
		}
		words = append(words, child.Text)
	}
	return strings.Join(words, " ")
}

// TextFields runs the profile's pattern library over text.
func TextFields(text string, profile Profile) []Field {
	if text == "" {
		return nil
	}
	var fields []Field
	for _, r := range rulesFor(profile) {
		for _, re := range r.alternatives {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			v := m[0]
			if len(m) > 1 {
				v = m[1]
			}
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			fields = append(fields, Field{Category: r.category, Value: v, Confidence: textConfidence, Source: SourceText})
			break
		}
	}
	return fields
}

// Dedupe removes exact (category, value) repeats, keeping the first.
func Dedupe(fields []Field) []Field {
	type key struct {
		c Category
		v string
	}
	seen := make(map[key]bool, len(fields))
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		k := key{f.Category, f.Value}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	return out
}

// Resolve picks one field per category for storage: form beats text, then
// higher confidence, then the earlier field.
func Resolve(fields []Field) map[Category]Field {
	out := make(map[Category]Field)
	for _, f := range fields {
		cur, ok := out[f.Category]
		if !ok || better(f, cur) {
			out[f.Category] = f
		}
	}
	return out
}

func better(a, b Field) bool {
	if a.Source != b.Source {
		return a.Source == SourceForm
	}
	return a.Confidence > b.Confidence
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
