package types

const (
	// AccumulatorDepth is the number of levels of the resource commitment
	// accumulator, which holds up to 2^32 commitments.
	AccumulatorDepth = 32
	// NullifierTreeMaxLevels is the number of levels of the spent nullifier
	// tree. Keys are 32-byte field encodings.
	NullifierTreeMaxLevels = 256
	// NullifierKeyMaxLen is the maximum length of a nullifier tree key in bytes.
	NullifierKeyMaxLen = NullifierTreeMaxLevels / 8
	// TransactionsPerBatch is the default number of transactions the processor
	// verifies concurrently before applying them to the state.
	TransactionsPerBatch = 16
)
