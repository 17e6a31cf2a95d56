package engine

import "time"

// Clock fornece o "agora" usado nas checagens de endTime
type Clock interface {
	Now() time.Time
}

// SystemClock usa o relógio de parede em UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
