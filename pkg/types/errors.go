// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

var (
	// ErrStorageUnavailable marks failures of the registry database or the
	// content store. The current request cannot continue without them.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrUnknownSourceCategory marks a category without a credibility entry
	// or a stored value outside the closed category set.
	ErrUnknownSourceCategory = errors.New("unknown source category")

	// ErrMalformedExistingRecord marks a registry row that is usable as
	// metadata only, for example when its stored content is missing on disk.
	ErrMalformedExistingRecord = errors.New("malformed existing record")
)
