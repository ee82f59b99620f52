package dictfile

// Exported constants for testing.
const (
	TestFileMagic         = fileMagic
	TestFileVersion       = fileVersion
	TestHeaderSize        = headerSize
	TestUnigramRecordSize = unigramRecordSize
	TestBigramRecordSize  = bigramRecordSize
	TestOffVersion        = offVersion
	TestOffChecksum       = offChecksum
	TestBigramOffWord     = biOffWord
)
