package text

// TextElement is one item of the flat element sequence produced by readers
// and consumed by the structuring engine. The set of implementations is
// closed: Paragraph, *Table, TitleMarker and Linebreak.
type TextElement interface {
	textElement()
}

// Paragraph is a run of body text. Links, when a reader can recover them,
// are expressed in code points relative to Text.
type Paragraph struct {
	Text  string
	Links []Link
}

// TitleMarker is an explicit heading. Lower levels outrank higher ones.
type TitleMarker struct {
	Text  string
	Level int
}

// Linebreak is a soft break between two paragraph fragments.
type Linebreak struct{}

func (Paragraph) textElement()   {}
func (*Table) textElement()      {}
func (TitleMarker) textElement() {}
func (Linebreak) textElement()   {}

// Enriched returns the paragraph as an EnrichedString.
func (p Paragraph) Enriched() EnrichedString {
	return EnrichedString{Text: p.Text, Links: p.Links}
}

// Enriched returns the title text as an EnrichedString.
func (t TitleMarker) Enriched() EnrichedString {
	return EnrichedString{Text: t.Text}
}
