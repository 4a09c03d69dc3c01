package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrLowConfidence is returned when the best match score does not clear the threshold
	ErrLowConfidence = errors.New("match confidence below threshold")

	// ErrNoCandidates is returned when there is nothing to match against
	ErrNoCandidates = errors.New("no catalog candidates")

	// ErrSheetNotFound is returned when a workbook lacks the expected sheet
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrColumnNotFound is returned when a sheet lacks an expected column
	ErrColumnNotFound = errors.New("column not found")

	// ErrNoInputFiles is returned when an input glob matches nothing readable
	ErrNoInputFiles = errors.New("no input files found")

	// ErrBlocked is returned when the retailer answers with an access-denied page
	ErrBlocked = errors.New("blocked by retailer")

	// ErrCodeNotFound is returned when a lookup finished without a product code
	ErrCodeNotFound = errors.New("product code not found")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)
