package session

import "errors"

var (
	// ErrPhotoNotFound is returned for an unknown photo id.
	ErrPhotoNotFound = errors.New("photo not found")

	// ErrYearOutOfRange is returned when a year has no bucket.
	ErrYearOutOfRange = errors.New("year out of range")

	// ErrControllerStopped is returned by operations sent after Stop.
	ErrControllerStopped = errors.New("session controller stopped")
)
