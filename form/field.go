package form

// Field holds one decoded form field's name and accumulated value. It
// implements the same Write/Finalize/Close sink contract as
// formfile.File, so the facade can treat a field and a file
// identically while a part's body streams in.
type Field struct {
	name  string
	value []byte
}

func newField(name string) *Field {
	return &Field{name: name}
}

// Name returns the field's name.
func (f *Field) Name() string { return f.name }

// Value returns the field's accumulated bytes.
func (f *Field) Value() []byte { return f.value }

func (f *Field) Write(p []byte) (int, error) {
	f.value = append(f.value, p...)
	return len(p), nil
}

// Finalize is a no-op; a Field has nothing to flush.
func (f *Field) Finalize() error { return nil }

// Close is a no-op; a Field owns no backing resource.
func (f *Field) Close() error { return nil }
