package triage

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Matcher scans a catalog in order and returns the first protocol whose
// predicate holds. A protocol that fails to evaluate is logged and treated as
// not matching; the scan continues with the next one.
type Matcher struct {
	catalog Catalog
	logger  zerolog.Logger
	onError func(code string)
}

// NewMatcher creates a matcher over catalog.
func NewMatcher(catalog Catalog, logger zerolog.Logger) *Matcher {
	return &Matcher{catalog: catalog, logger: logger}
}

// OnProtocolError registers a callback invoked with the protocol code every
// time a predicate fails to evaluate.
func (m *Matcher) OnProtocolError(fn func(code string)) {
	m.onError = fn
}

// Catalog returns the catalog the matcher scans.
func (m *Matcher) Catalog() Catalog { return m.catalog }

// Match returns the first matching protocol, or nil.
func (m *Matcher) Match(complaint string, v VitalSigns) *Protocol {
	normalized := NormalizeComplaint(complaint)
	if normalized == "" && v == (VitalSigns{}) {
		return nil
	}
	for i := range m.catalog {
		p := &m.catalog[i]
		ok, err := safeMatch(p, normalized, v)
		if err != nil {
			m.logger.Warn().Err(err).Str("protocol", p.Code).Msg("protocol evaluation failed, skipping")
			if m.onError != nil {
				m.onError(p.Code)
			}
			continue
		}
		if ok {
			return p
		}
	}
	return nil
}

func safeMatch(p *Protocol, complaint string, v VitalSigns) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Matches(complaint, v)
}
