package storage

import "errors"

var (
	ErrNoImage         = errors.New("no image provided")
	ErrUnsupportedType = errors.New("images only (JPG, PNG, WEBP)")
	ErrImageTooLarge   = errors.New("image exceeds maximum allowed size")
)
