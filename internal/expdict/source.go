package expdict

// Source is the authoritative origin of a dictionary's words.
type Source interface {
	// LoadInto adds every word of the source to sink. The sink has been
	// cleared when LoadInto is called as part of a rebuild.
	LoadInto(sink WordSink) error

	// HasContentChanged reports whether the source differs from what the
	// last rebuild wrote. Called under the shared lock; keep it cheap.
	HasContentChanged() bool

	// NeedsReloadBeforeWriting reports whether a rebuild must clear the
	// writer and call LoadInto before serializing. Sources whose writer is
	// the only copy of the data (dynamic user history) return false.
	NeedsReloadBeforeWriting() bool
}

// RebuildNotifier is implemented by sources that want to know when a
// rebuild they triggered has been written and mapped.
type RebuildNotifier interface {
	Rebuilt()
}

// StaticSource is a [Source] with no backing data. Its content never
// changes, so a file is only ever rebuilt when it is missing or invalid.
type StaticSource struct{}

func (StaticSource) LoadInto(WordSink) error        { return nil }
func (StaticSource) HasContentChanged() bool        { return false }
func (StaticSource) NeedsReloadBeforeWriting() bool { return false }
