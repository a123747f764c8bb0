package models

import "errors"

// ErrInvalidStars is returned when a rating is outside the 1-5 range.
var ErrInvalidStars = errors.New("rating stars must be between 1 and 5")
