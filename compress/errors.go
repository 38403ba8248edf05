package compress

import "errors"

// Sentinel errors for compression operations.
var (
	// ErrInvalidConfig indicates invalid compression configuration.
	ErrInvalidConfig = errors.New("invalid compression configuration")

	// ErrStructuredContent indicates a turn whose content class forbids
	// compression.
	ErrStructuredContent = errors.New("structured content is never compressed")

	// ErrLossyResult indicates the model output dropped quantitative
	// outcomes that the content class requires preserved.
	ErrLossyResult = errors.New("compressed output lost required detail")

	// ErrNoReduction indicates the model output was not shorter than the
	// input. The original is kept.
	ErrNoReduction = errors.New("compression produced no reduction")
)
