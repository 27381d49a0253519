package verify

import (
	"fmt"
	"strings"

	"github.com/christo725/seen/internal/model"
)

// Result is the normalized verification outcome flattened into the Upload's
// text fields. It is transient; only Verified, Status and Text persist.
type Result struct {
	Status   string
	Verified bool

	Summary  string
	Analysis string

	// Issues merges pre-computed lexical alerts (first, order preserved) with
	// the model's reported issues.
	Issues             []string
	SupportingFactors  []string
	Claims             []string
	TrustedFindings    []string
	WebFindings        []string
	Sources            []string
	MediaFindings      []string
	RecommendedActions []string

	// Text is the composited human-readable block written to the record.
	Text string
}

// Normalize maps the parsed model JSON into a Result. The model is
// non-deterministic, so every field defaults defensively: absent or
// wrong-shaped fields become empty, never an error.
func Normalize(parsed map[string]interface{}, precomputed []string) Result {
	r := Result{
		Status:             stringField(parsed, "status"),
		Summary:            stringField(parsed, "result", "summary"),
		Analysis:           stringField(parsed, "analysis", "full_analysis"),
		SupportingFactors:  stringList(parsed, "supporting_factors"),
		Claims:             stringList(parsed, "claims_identified", "claims"),
		TrustedFindings:    stringList(parsed, "trusted_source_findings"),
		WebFindings:        stringList(parsed, "web_search_findings"),
		Sources:            stringList(parsed, "sources"),
		MediaFindings:      stringList(parsed, "media_analysis_findings"),
		RecommendedActions: stringList(parsed, "recommended_actions"),
	}

	switch r.Status {
	case model.StatusVerified, model.StatusPotentialIssues, model.StatusUnverified:
	default:
		r.Status = model.StatusUnverified
	}
	r.Verified = r.Status == model.StatusVerified

	r.Issues = append(append([]string{}, precomputed...), stringList(parsed, "issues")...)

	r.Text = composeText(r)
	return r
}

// FailureResult builds the terminal state persisted when verification was
// attempted and failed: explicitly unverified, with the underlying error
// embedded so it is distinguishable from a pending (empty) result.
func FailureResult(err error) Result {
	return Result{
		Status:   model.StatusUnverified,
		Verified: false,
		Summary:  fmt.Sprintf("Verification failed: %v", err),
		Text:     fmt.Sprintf("Verification failed: %v", err),
	}
}

// composeText orders sections as: summary, issues, Level-1 trusted-source
// findings, web-search findings, non-URL sources, Level-2 media findings,
// claims, recommended actions, then the full analysis when distinct.
func composeText(r Result) string {
	var b strings.Builder

	if r.Summary != "" {
		b.WriteString(r.Summary)
	} else {
		b.WriteString("No summary returned by the verification model.")
	}
	b.WriteString("\n")

	writeSection(&b, "Issues Noted:", r.Issues)
	writeSection(&b, "Trusted Source Findings (Level 1):", r.TrustedFindings)
	writeSection(&b, "Web Search Findings:", r.WebFindings)
	writeSection(&b, "Sources:", nonURLSources(r.Sources))
	writeSection(&b, "Media Analysis Findings (Level 2):", r.MediaFindings)
	writeSection(&b, "Claims Identified:", r.Claims)
	writeSection(&b, "Recommended Actions:", r.RecommendedActions)

	if r.Analysis != "" && r.Analysis != r.Summary {
		b.WriteString("\nFull Analysis:\n")
		b.WriteString(r.Analysis)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, header string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(header)
	b.WriteString("\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}

// nonURLSources filters out bare links; cited source names are kept. The
// model's grounding links carry no reader value without titles.
func nonURLSources(sources []string) []string {
	var out []string
	for _, s := range sources {
		trimmed := strings.TrimSpace(s)
		lower := strings.ToLower(trimmed)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			continue
		}
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// stringField returns the first present string-typed field among keys.
func stringField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// stringList coerces a field into a string slice. Arrays keep their
// string-typed elements in order; a bare string becomes a single-element
// list; anything else is empty.
func stringList(m map[string]interface{}, keys ...string) []string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case []interface{}:
			var out []string
			for _, item := range v {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
			if out != nil {
				return out
			}
		case string:
			if strings.TrimSpace(v) != "" {
				return []string{strings.TrimSpace(v)}
			}
		}
	}
	return nil
}
