// Package dictfile implements the binary dictionary snapshot format.
//
// A snapshot is an immutable, mmap-friendly encoding of a word list:
// unigrams (words with a frequency and an optional shortcut target) and
// bigrams (word pairs with a frequency). It is a derived artifact: on
// corruption or version mismatch, throw it away and encode it again from
// the source of truth.
//
// # Basic Usage
//
//	data, err := dictfile.Encode(unigrams, bigrams)
//	// persist data, then:
//	dict, err := dictfile.Open(path, 0, 0, dictfile.Options{})
//	if err != nil {
//	    // handle [ErrCorrupt]/[ErrIncompatible] by rebuilding the file
//	}
//	defer dict.Close()
//
//	if !dict.IsValid() {
//	    // checksum or index damage: rebuild
//	}
//
//	ok := dict.IsValidWord("cat")
//	sugg := dict.Suggestions(dictfile.Query{Prefix: "ca"})
//
// # File Layout
//
// All integers are little endian.
//
//	header   32 bytes   magic "DIC1", version, flags, unigram count,
//	                    bigram count, xxhash64 of body, body length
//	unigrams 16 bytes   per record, sorted by word bytes
//	bigrams  24 bytes   per record, sorted by (prev index, word index)
//	strings  variable   word bytes immediately followed by shortcut bytes
//
// [Open] validates only the header so that loading stays O(1);
// [Dictionary.IsValid] verifies the checksum and every index record.
//
// # Concurrency
//
// Read methods on [Dictionary] are safe for concurrent use. [Dictionary.Close]
// must not race with reads; callers guard the handle with their own lock.
package dictfile
