package verification

import "errors"

var (
	ErrRecordNotFound     = errors.New("verification not found")
	ErrNotOwner           = errors.New("you do not own this verification")
	ErrInvalidMetadata    = errors.New("metadata must be a JSON object")
	ErrMetadataTooLarge   = errors.New("metadata exceeds maximum allowed size")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
