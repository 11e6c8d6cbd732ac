package extract

import "strings"

const dashSeparator = " - "

// Strategy parses one textual encoding of a record into a partial Fields.
type Strategy interface {
	Name() string
	Parse(text string) Fields
}

// DefaultStrategies is the fixed priority order used by ParseText.
var DefaultStrategies = []Strategy{LineStrategy{}, DashStrategy{}}

// ParseText recovers record fields from free text using DefaultStrategies.
func ParseText(text string) Fields {
	return ParseWith(text, DefaultStrategies...)
}

// ParseWith runs strategies in order. A field filled by an earlier strategy
// is never overwritten by a later one.
func ParseWith(text string, strategies ...Strategy) Fields {
	var out Fields
	for _, s := range strategies {
		out.merge(s.Parse(text))
	}
	return out
}

// LineStrategy reads one "marker: value" pair per line. Once an output
// marker is seen, following lines extend the output unless they carry a
// marker for a field that is still unset.
type LineStrategy struct{}

func (LineStrategy) Name() string { return "line" }

func (LineStrategy) Parse(text string) Fields {
	var (
		out       Fields
		inOutput  bool
		outputBuf []string
	)

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		field, value, ok := matchMarker(line)
		if inOutput && (!ok || field == FieldOutput || out.Has(field)) {
			outputBuf = append(outputBuf, line)
			continue
		}
		if !ok {
			continue
		}
		inOutput = false

		// A dash-joined record on a single line belongs to DashStrategy.
		if containsDashMarker(value) {
			continue
		}

		if field == FieldOutput {
			if outputBuf == nil {
				inOutput = true
				outputBuf = []string{value}
			}
			continue
		}
		out.assign(field, value)
	}

	if outputBuf != nil {
		out.assign(FieldOutput, strings.TrimRight(strings.Join(outputBuf, "\n"), "\n"))
	}
	return out
}

// DashStrategy reads "marker: value" pairs joined by " - ".
type DashStrategy struct{}

func (DashStrategy) Name() string { return "dash" }

func (DashStrategy) Parse(text string) Fields {
	var out Fields
	for _, part := range strings.Split(text, dashSeparator) {
		field, value, ok := matchMarker(strings.TrimSpace(part))
		if !ok {
			continue
		}
		out.assign(field, value)
	}
	return out
}

func containsDashMarker(s string) bool {
	parts := strings.Split(s, dashSeparator)
	for _, p := range parts[1:] {
		if _, _, ok := matchMarker(p); ok {
			return true
		}
	}
	return false
}
