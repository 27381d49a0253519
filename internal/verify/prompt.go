package verify

import (
	"fmt"
	"strings"
	"time"

	"github.com/christo725/seen/internal/groundtruth"
	"github.com/christo725/seen/internal/model"
)

// Vocabulary used by the lexical pre-checks. These are substring heuristics,
// not proof; matches surface to the model as pre-verification alerts.
var (
	daytimeWords = []string{
		"daytime", "daylight", "sunny", "sunshine", "sunlight",
		"morning", "midday", "noon", "afternoon", "bright sun", "blue sky",
	}
	nighttimeWords = []string{
		"nighttime", "night", "evening", "midnight", "after dark",
		"moonlit", "moonlight", "starry", "stars", "dark sky",
	}
)

// LexicalAlerts runs naive day/night vocabulary checks of the description
// against the sun signal. Returned alerts are merged with (never substituted
// for) the model's own findings.
func LexicalAlerts(description string, snap groundtruth.Snapshot) []string {
	if description == "" || snap.IsDaytime == nil {
		return nil
	}
	lower := strings.ToLower(description)

	var alerts []string
	if !*snap.IsDaytime {
		for _, w := range daytimeWords {
			if strings.Contains(lower, w) {
				alerts = append(alerts, fmt.Sprintf(
					"Description mentions %q but sunrise/sunset data indicates it was nighttime at the capture time and location.", w))
				break
			}
		}
	} else {
		for _, w := range nighttimeWords {
			if strings.Contains(lower, w) {
				alerts = append(alerts, fmt.Sprintf(
					"Description mentions %q but sunrise/sunset data indicates it was daytime at the capture time and location.", w))
				break
			}
		}
	}
	return alerts
}

// BuildPrompt assembles the full verification prompt: contextual data,
// pre-verification alerts, the two-level verification hierarchy, and the
// required response shape. Pure function of its inputs.
func BuildPrompt(description string, snap groundtruth.Snapshot, alerts []string, mediaKind string) string {
	var b strings.Builder

	b.WriteString("You are verifying a user-submitted ")
	b.WriteString(mediaKind)
	b.WriteString(" upload from a geo-tagged media app.\n\n")

	if description != "" {
		fmt.Fprintf(&b, "USER DESCRIPTION (the claim under verification):\n%q\n\n", description)
	} else {
		b.WriteString("The user provided NO description. There is no textual claim to check; verify purely from the media content against the contextual data below, and report anything inconsistent.\n\n")
	}

	b.WriteString("TRUSTED CONTEXTUAL DATA:\n")
	wroteContext := false
	if snap.PlaceName != "" {
		fmt.Fprintf(&b, "- Location: %s\n", snap.PlaceName)
		wroteContext = true
	}
	if snap.Sunrise != nil && snap.Sunset != nil {
		fmt.Fprintf(&b, "- Sunrise: %s, Sunset: %s (UTC)\n",
			snap.Sunrise.UTC().Format(time.RFC3339), snap.Sunset.UTC().Format(time.RFC3339))
		wroteContext = true
	}
	if snap.IsDaytime != nil {
		if *snap.IsDaytime {
			b.WriteString("- The capture time falls in DAYTIME at this location.\n")
		} else {
			b.WriteString("- The capture time falls in NIGHTTIME at this location.\n")
		}
		wroteContext = true
	}
	if snap.WeatherDescription != "" {
		fmt.Fprintf(&b, "- Current weather near the location: %s", snap.WeatherDescription)
		if snap.TemperatureC != nil {
			fmt.Fprintf(&b, ", %.1f°C", *snap.TemperatureC)
		}
		if len(snap.Conditions) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(snap.Conditions, ", "))
		}
		b.WriteString("\n")
		b.WriteString("  Note: this is CURRENT weather, not weather at capture time. Use web search for historical conditions if the capture date is not today.\n")
		wroteContext = true
	}
	if !wroteContext {
		b.WriteString("- None available for this upload.\n")
	}
	b.WriteString("\n")

	if len(alerts) > 0 {
		b.WriteString("PRE-VERIFICATION ALERTS (heuristic text checks, not proof — confirm or refute them):\n")
		for _, a := range alerts {
			fmt.Fprintf(&b, "- %s\n", a)
		}
		b.WriteString("\n")
	}

	b.WriteString(`VERIFICATION HIERARCHY:
Level 1 — verify the description's factual claims against the trusted contextual data above. For historical facts, news events, or past weather the data above cannot supply, use web search.
Level 2 — analyze the attached media ONLY to corroborate or contradict the Level 1 findings. Visual analysis is never the primary authority.

Respond with ONLY a JSON object of this shape:
{
  "status": "verified" | "potential_issues" | "unverified",
  "result": "one-paragraph summary of the verification outcome",
  "analysis": "full analysis if longer than the summary",
  "issues": ["each inconsistency found"],
  "supporting_factors": ["each point supporting the description"],
  "claims_identified": ["each factual claim extracted from the description"],
  "trusted_source_findings": ["Level 1 findings against the supplied data"],
  "web_search_findings": ["findings from web search, if used"],
  "sources": ["names of sources consulted"],
  "media_analysis_findings": ["Level 2 findings from the media itself"],
  "recommended_actions": ["follow-ups a reviewer should take, if any"]
}
Omit no fields; use empty arrays or empty strings where you have nothing.`)

	return b.String()
}

// mediaKindLabel guards against persisting odd values into the prompt.
func mediaKindLabel(kind string) string {
	switch kind {
	case model.MediaKindVideo:
		return model.MediaKindVideo
	default:
		return model.MediaKindImage
	}
}
