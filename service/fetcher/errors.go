package fetcher

import (
	"context"
	"errors"

	"github.com/viant/artifex/model"
)

var (
	// ErrFetchTimeout is returned when a fetch exceeds its deadline
	ErrFetchTimeout = errors.New("fetcher: fetch timeout")
	// ErrFetchIO is returned on any other transfer failure
	ErrFetchIO = errors.New("fetcher: fetch io failure")
)

// reasonOf maps a fetch error onto the reported reason code
func reasonOf(err error) model.Reason {
	if errors.Is(err, ErrFetchTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return model.ReasonFetchTimeout
	}
	return model.ReasonFetchIOFailure
}
