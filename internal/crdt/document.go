// Package crdt holds the per-document character sequence. The server is
// the single authority for a document: it assigns character ids and
// resolves insert positions, so the structure needs no causal metadata
// beyond the after-id anchor.
package crdt

// Char is one character of a document. A deleted character stays in the
// sequence with Visible=false so it can keep serving as an insert anchor.
type Char struct {
	ID      string `json:"id"`
	Value   string `json:"char"`
	Visible bool   `json:"visible"`
}

// Document is an ordered sequence of characters, live and tombstoned.
// It is not safe for concurrent use; the owning session serializes
// access.
type Document struct {
	chars []Char
	index map[string]int // id -> position in chars
}

func NewDocument() *Document {
	return &Document{index: make(map[string]int)}
}

// Snapshot returns the full ordered state, tombstones included, for
// bootstrapping a newly attached client.
func (d *Document) Snapshot() []Char {
	out := make([]Char, len(d.chars))
	copy(out, d.chars)
	return out
}

// Len reports the number of characters ever inserted, tombstones
// included.
func (d *Document) Len() int {
	return len(d.chars)
}

// MergeInsert places a new character after the anchor afterID. A nil
// anchor means the front of the document. An anchor that was never seen
// falls back to appending at the tail; that is a deliberate
// conflict-resolution policy, not an error. Re-delivery of an id that
// already exists is a no-op.
func (d *Document) MergeInsert(opID, value string, afterID *string) {
	if _, ok := d.index[opID]; ok {
		return
	}
	pos := len(d.chars)
	if afterID == nil {
		pos = 0
	} else if i, ok := d.index[*afterID]; ok {
		pos = i + 1
	}
	d.chars = append(d.chars, Char{})
	copy(d.chars[pos+1:], d.chars[pos:])
	d.chars[pos] = Char{ID: opID, Value: value, Visible: true}
	for i := pos; i < len(d.chars); i++ {
		d.index[d.chars[i].ID] = i
	}
}

// MergeDelete tombstones the character with the given id. Deleting an
// unknown id is silently dropped; no buffering or retry happens here.
func (d *Document) MergeDelete(opID string) {
	if i, ok := d.index[opID]; ok {
		d.chars[i].Visible = false
	}
}

// VisibleText materializes the current text: every visible character's
// value, in sequence order.
func (d *Document) VisibleText() string {
	var b []byte
	for _, c := range d.chars {
		if c.Visible {
			b = append(b, c.Value...)
		}
	}
	return string(b)
}

// Restore replaces the document contents with a previously persisted
// snapshot. Used once, before any client attaches.
func (d *Document) Restore(chars []Char) {
	d.chars = make([]Char, len(chars))
	copy(d.chars, chars)
	d.index = make(map[string]int, len(chars))
	for i, c := range d.chars {
		d.index[c.ID] = i
	}
}
