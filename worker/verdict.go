package worker

import (
	"fmt"
	"regexp"
)

// Verdict is the worker's interpretation of a scoring service response line.
type Verdict int

const (
	// VerdictUnknown means no configured pattern matched the response.
	VerdictUnknown Verdict = iota
	// VerdictAccepted means the flag scored.
	VerdictAccepted
	// VerdictDuplicate means the flag was already submitted.
	VerdictDuplicate
	// VerdictStale means the flag expired before submission.
	VerdictStale
	// VerdictInvalid means the service rejected the flag outright.
	VerdictInvalid
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "accepted"
	case VerdictDuplicate:
		return "duplicate"
	case VerdictStale:
		return "stale"
	case VerdictInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Patterns holds the regular expressions used to classify response lines.
// Empty fields fall back to defaults matching the phrasing of common game
// servers.
type Patterns struct {
	Accepted  string
	Duplicate string
	Stale     string
	Invalid   string
}

const (
	defaultAccepted  = `(?i)accepted|congrat|success`
	defaultDuplicate = `(?i)already|duplicate|own flag`
	defaultStale     = `(?i)too old|expired|stale|too late`
	defaultInvalid   = `(?i)invalid|wrong|no such flag|denied`
)

// Classifier maps response lines to verdicts. Patterns are checked in order
// accepted, duplicate, stale, invalid; the first match wins.
type Classifier struct {
	rules []struct {
		re      *regexp.Regexp
		verdict Verdict
	}
}

// NewClassifier compiles the patterns, substituting defaults for empty ones.
func NewClassifier(p Patterns) (*Classifier, error) {
	specs := []struct {
		pattern, fallback string
		verdict           Verdict
	}{
		{p.Accepted, defaultAccepted, VerdictAccepted},
		{p.Duplicate, defaultDuplicate, VerdictDuplicate},
		{p.Stale, defaultStale, VerdictStale},
		{p.Invalid, defaultInvalid, VerdictInvalid},
	}

	c := &Classifier{}
	for _, s := range specs {
		pattern := s.pattern
		if pattern == "" {
			pattern = s.fallback
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("worker: bad %s pattern: %w", s.verdict, err)
		}
		c.rules = append(c.rules, struct {
			re      *regexp.Regexp
			verdict Verdict
		}{re, s.verdict})
	}
	return c, nil
}

// Classify returns the verdict for one response line.
func (c *Classifier) Classify(line string) Verdict {
	for _, r := range c.rules {
		if r.re.MatchString(line) {
			return r.verdict
		}
	}
	return VerdictUnknown
}
