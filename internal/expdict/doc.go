// Package expdict keeps a memory-mapped dictionary snapshot in sync with a
// mutable in-memory word list.
//
// A [Dictionary] owns three things: an in-memory [SourceWriter] that
// collects words, a read-only snapshot ([dictfile.Dictionary]) mapped from
// a file on disk, and a [Source] that knows how to repopulate the writer
// from the authoritative data (a word list, user history, contacts ...).
//
// Several Dictionary instances may point at the same file. They share one
// [Tracker] per file, handed out by a [Registry], and each has its own
// local Tracker.
//
// # Staleness
//
// A Tracker holds two timestamps: when an update was last requested and
// when one last completed. It is out of date while the request is newer.
// [Dictionary.MarkRequiresReload] is the only way to assert staleness.
//
// # Reload
//
// Queries start a background reload when the instance is stale. The reload
// takes the shared lock, then the local lock, and decides:
//
//   - shared stale or file missing, content changed or file missing:
//     rebuild (serialize the writer, map the new file)
//   - shared stale, content unchanged: revert the shared request time
//   - no snapshot, or a sibling rebuilt the file since we last loaded:
//     map the existing file
//   - snapshot fails validation: rebuild regardless
//
// Replaced snapshots are closed after both locks are released.
//
// # Lock Ordering
//
// Shared before local, always. Locks are released local first.
// With [Options.CrossProcessLock], an flock on "<file>.lock" is taken
// right after the shared in-process lock and released right before it.
//
// # Contention
//
// Dynamic mutations ([Dictionary.AddWordDynamically] ...) and lookups use
// TryLock. When a reload holds the local lock, mutations are dropped and
// lookups answer false or nil. The *Blocking variants wait instead.
//
// # Errors
//
// Reload failures are not returned. They are logged, counted, and kept as
// [Dictionary.Err] until the next successful reload.
package expdict
