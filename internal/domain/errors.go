package domain

import "errors"

// ErrDuplicateReview signals that a review for the same (owner, name, PR)
// triple already exists.
var ErrDuplicateReview = errors.New("review already exists for pull request")

// ErrReviewNotFound signals a lookup miss.
var ErrReviewNotFound = errors.New("review not found")
