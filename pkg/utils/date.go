package utils

import (
	"log"
	"time"
)

// TimeNowET returns the current time in US Eastern Time, the clock all
// market schedules are defined against.
func TimeNowET() time.Time {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Fatal("Failed to load location", err)
	}
	return time.Now().In(loc)
}

// LocationET returns the US Eastern Time location.
func LocationET() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Fatal("Failed to load location", err)
	}
	return loc
}
