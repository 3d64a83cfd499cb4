package core

// DocID is a dense, index-wide identifier for a document. It is strictly
// 32-bit, allowing for max 4 Billion documents per index.
// Used for all hot-path structures (posting lists, doc sets, live masks).
type DocID uint32

// MaxDocID is the maximum possible value for a DocID.
const MaxDocID = ^DocID(0)
