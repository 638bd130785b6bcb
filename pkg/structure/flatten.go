package structure

import (
	"fmt"

	"github.com/coolbeans/normtree/pkg/text"
)

func checkElement(el text.TextElement) error {
	switch v := el.(type) {
	case text.Paragraph, text.TitleMarker, text.Linebreak:
		return nil
	case *text.Table:
		if v == nil {
			return fmt.Errorf("%w: nil table", ErrUnexpectedElement)
		}
		return nil
	case nil:
		return fmt.Errorf("%w: nil element", ErrUnexpectedElement)
	default:
		return fmt.Errorf("%w: %T", ErrUnexpectedElement, el)
	}
}

// flatten turns a run of elements into alineas. Paragraphs linked by a
// Linebreak merge into one alinea joined with "\n"; tables stand alone.
// Title markers that reach this point (a deeper heading before the first
// split marker) are kept as plain alineas.
func flatten(elements []text.TextElement) ([]text.EnrichedString, error) {
	out := []text.EnrichedString{}
	var cur *text.EnrichedString
	joinNext := false

	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
		joinNext = false
	}

	for _, el := range elements {
		switch v := el.(type) {
		case text.Paragraph:
			if cur != nil && joinNext {
				appendLine(cur, v)
				joinNext = false
				continue
			}
			flush()
			s := v.Enriched().Clone()
			cur = &s
		case text.Linebreak:
			if cur != nil {
				joinNext = true
			}
		case *text.Table:
			flush()
			out = append(out, text.NewTableString(v.Clone()))
		case text.TitleMarker:
			flush()
			out = append(out, v.Enriched())
		default:
			if err := checkElement(el); err != nil {
				return nil, err
			}
		}
	}
	flush()
	return out, nil
}

// appendLine appends "\n" and p to s, shifting p's links.
func appendLine(s *text.EnrichedString, p text.Paragraph) {
	offset := s.RuneLen() + 1
	s.Text += "\n" + p.Text
	for _, l := range p.Links {
		l.Position += offset
		s.Links = append(s.Links, l)
	}
}
