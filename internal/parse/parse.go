// Package parse normalizes model output into the fixed review schema.
// Parsing is structured-first: strict JSON, then heuristic section
// extraction, then placeholders. It never fails.
package parse

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Origin tags which parsing tier produced the result.
type Origin int

const (
	// OriginStructured means the model output was valid JSON.
	OriginStructured Origin = iota
	// OriginExtracted means JSON parsing failed and at least one section was
	// recovered by header extraction.
	OriginExtracted
	// OriginPlaceholder means nothing could be recovered; every section is a
	// placeholder string.
	OriginPlaceholder
)

func (o Origin) String() string {
	switch o {
	case OriginStructured:
		return "structured"
	case OriginExtracted:
		return "extracted"
	default:
		return "placeholder"
	}
}

// Sections is the fixed review schema. Missing fields stay empty strings.
type Sections struct {
	Strengths           string `json:"strengths"`
	AreasForImprovement string `json:"areasForImprovement"`
	Achievements        string `json:"achievements"`
	GoalsForNextPeriod  string `json:"goalsForNextPeriod"`
	DevelopmentPlan     string `json:"developmentPlan"`
	ManagerComments     string `json:"managerComments"`
}

// ParsedReview is a fully-populated schema plus the tier that produced it.
type ParsedReview struct {
	Sections
	Origin Origin
}

// section maps recognized header spellings onto a schema field.
type section struct {
	key         string
	placeholder string
	assign      func(*Sections, string)
}

var sections = []section{
	{"strengths", "Unable to generate strengths section.", func(s *Sections, v string) { s.Strengths = v }},
	{"areas", "Unable to generate areas for improvement section.", func(s *Sections, v string) { s.AreasForImprovement = v }},
	{"achievements", "Unable to generate achievements section.", func(s *Sections, v string) { s.Achievements = v }},
	{"goals", "Unable to generate goals for next period section.", func(s *Sections, v string) { s.GoalsForNextPeriod = v }},
	{"development", "Unable to generate development plan section.", func(s *Sections, v string) { s.DevelopmentPlan = v }},
	{"manager", "Unable to generate manager comments section.", func(s *Sections, v string) { s.ManagerComments = v }},
}

// headerRe matches a section header at the start of a line, tolerating
// markdown decoration and trailing words (e.g. "## Areas for Improvement:").
var headerRe = regexp.MustCompile(`(?im)^[#*\-\s]*(strengths|areas|achievements|goals|development|manager)[^:\n]*:`)

// fenceRe strips a surrounding markdown code fence from model output.
var fenceRe = regexp.MustCompile("(?s)^\\s*```(?:json)?\\s*(.*?)\\s*```\\s*$")

// Review parses raw model output against the review schema. The primary path
// is strict JSON; on failure, ordered header extraction recovers what it can
// and any unmatched section becomes a placeholder. The returned schema is
// always fully populated.
func Review(raw string) ParsedReview {
	trimmed := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
		trimmed = m[1]
	}

	var s Sections
	if err := json.Unmarshal([]byte(trimmed), &s); err == nil && strings.HasPrefix(trimmed, "{") {
		return ParsedReview{Sections: s, Origin: OriginStructured}
	}

	return extract(trimmed)
}

// extract slices the text between recognized headers. Each match consumes
// text up to the next known header or end-of-string.
func extract(text string) ParsedReview {
	matches := headerRe.FindAllStringSubmatchIndex(text, -1)

	found := make(map[string]string, len(sections))
	for i, m := range matches {
		key := strings.ToLower(text[m[2]:m[3]])
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		content := strings.TrimSpace(text[m[1]:end])
		if content == "" {
			continue
		}
		// First occurrence wins.
		if _, ok := found[key]; !ok {
			found[key] = content
		}
	}

	var out ParsedReview
	out.Origin = OriginPlaceholder
	for _, sec := range sections {
		if content, ok := found[sec.key]; ok {
			sec.assign(&out.Sections, content)
			out.Origin = OriginExtracted
		} else {
			sec.assign(&out.Sections, sec.placeholder)
		}
	}
	return out
}
