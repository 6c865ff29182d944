package storage

// Key addresses one document.
type Key struct {
	Collection string
	ID         string
}

// Write is a buffered mutation. A nil Doc means delete. Create marks an
// insert that must fail with ErrAlreadyExists if the document exists.
type Write struct {
	Key
	Doc    Document
	Create bool
}

// WriteSet buffers the writes of a transaction body, last write per key wins,
// in first-touched order.
type WriteSet struct {
	order []Key
	byKey map[Key]Write
}

func NewWriteSet() *WriteSet {
	return &WriteSet{byKey: make(map[Key]Write)}
}

func (w *WriteSet) Put(collection, id string, doc Document) {
	w.set(Key{collection, id}, nonNil(doc), false)
}

// Create buffers an insert. A later Put of the same key keeps it an insert.
func (w *WriteSet) Create(collection, id string, doc Document) {
	w.set(Key{collection, id}, nonNil(doc), true)
}

func (w *WriteSet) Delete(collection, id string) {
	w.set(Key{collection, id}, nil, false)
}

func (w *WriteSet) set(k Key, doc Document, create bool) {
	prev, ok := w.byKey[k]
	if !ok {
		w.order = append(w.order, k)
	}
	if doc != nil && prev.Create {
		create = true
	}
	w.byKey[k] = Write{Key: k, Doc: doc, Create: create}
}

func nonNil(doc Document) Document {
	if doc == nil {
		return Document{}
	}
	return Clone(doc)
}

// Lookup reports a buffered write for the key. ok is false when the key was
// never written; a nil doc with ok true means it was deleted.
func (w *WriteSet) Lookup(collection, id string) (doc Document, ok bool) {
	wr, ok := w.byKey[Key{collection, id}]
	return Clone(wr.Doc), ok
}

func (w *WriteSet) Writes() []Write {
	out := make([]Write, 0, len(w.order))
	for _, k := range w.order {
		out = append(out, w.byKey[k])
	}
	return out
}

func (w *WriteSet) Len() int {
	return len(w.order)
}
