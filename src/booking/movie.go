package booking

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const maxMovieSeatsPerBooking = 2

// FindMovieShowtimes lists showtimes for a movie in a location on a date
// (YYYY-MM-DD). Movie and location match case-insensitively; dates exactly.
func FindMovieShowtimes(movie, location, date string) Result {
	slog.Info("tool call", "tool", "find_movie_showtimes", "movie", movie, "location", location, "date", date)

	if strings.EqualFold(movie, "avengers: endgame") && strings.EqualFold(location, "hyderabad") && date == "2025-05-15" {
		return Result{
			Status:    StatusSuccess,
			Showtimes: []string{"14:00", "17:30", "21:00"},
		}
	}
	return errorResult(fmt.Sprintf("No showtimes found for '%s' in '%s' on '%s'.", movie, location, date))
}

// SelectMovieSeats holds seats for a showtime. The demo cap of two seats per
// booking applies here as well.
func SelectMovieSeats(showtime string, numSeats int, preferences string) Result {
	slog.Info("tool call", "tool", "select_movie_seats", "showtime", showtime, "num_seats", numSeats, "preferences", preferences)

	if numSeats < 1 || numSeats > maxMovieSeatsPerBooking {
		return errorResult(fmt.Sprintf("Could not select %d seats for showtime %s. Maximum %d seats allowed in this demo.", numSeats, showtime, maxMovieSeatsPerBooking))
	}

	seats := []string{"B3"}
	if numSeats == 2 {
		seats = []string{"A5", "A6"}
	}
	prefs := preferences
	if prefs == "" {
		prefs = "none"
	}
	return Result{
		Status: StatusSuccess,
		Seats:  seats,
		Message: fmt.Sprintf("Selected %d seats (%s) for the %s showtime (preferences: %s).",
			numSeats, strings.Join(seats, ", "), showtime, prefs),
	}
}

// ConfirmMovieBooking confirms a movie booking for the selected seats. All
// fields are required; any missing one yields the error variant.
func ConfirmMovieBooking(movie, showtime string, seats []string) Result {
	slog.Info("tool call", "tool", "confirm_movie_booking", "movie", movie, "showtime", showtime, "seats", seats)

	if movie == "" || showtime == "" || len(seats) == 0 {
		return errorResult("Booking confirmation failed. Missing movie, showtime or seats.")
	}

	bookingID := fmt.Sprintf("MOVIE_BOOKING_%s", time.Now().Format("20060102150405"))
	return Result{
		Status:    StatusSuccess,
		BookingID: bookingID,
		Message: fmt.Sprintf("Your booking for '%s' at %s in seats %s is confirmed. Your booking ID is %s.",
			movie, showtime, strings.Join(seats, ", "), bookingID),
	}
}
