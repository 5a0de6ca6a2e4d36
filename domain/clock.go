//go:generate go run go.uber.org/mock/mockgen -source=clock.go -destination=../mocks/mock_clock.go -package=mocks
package domain

import "time"

// Clock abstracts "now" so that eviction and stamping logic can be tested
// with simulated time instead of real sleeps.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
