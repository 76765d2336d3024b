package booking

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Seat cap per reservation, a hard business rule of the demo inventory.
const maxBusSeatsPerBooking = 2

// FindAvailableBuses finds buses for an origin, destination and travel date
// (YYYY-MM-DD). Place names match case-insensitively; dates match exactly.
func FindAvailableBuses(origin, destination, travelDate string) Result {
	slog.Info("tool call", "tool", "find_available_buses", "origin", origin, "destination", destination, "travel_date", travelDate)

	switch {
	case strings.EqualFold(origin, "mumbai") && strings.EqualFold(destination, "pune") && travelDate == "2025-07-20":
		return Result{
			Status: StatusSuccess,
			Buses: []BusOption{
				{BusID: "BUS789", OperatorName: "Red Travels", DepartureTime: "09:00", ArrivalTime: "13:00", PricePerSeat: 500, AvailableSeats: 15},
				{BusID: "BUS123", OperatorName: "BlueLine Express", DepartureTime: "11:30", ArrivalTime: "15:30", PricePerSeat: 550, AvailableSeats: 10},
			},
		}
	case strings.EqualFold(origin, "delhi") && strings.EqualFold(destination, "jaipur") && travelDate == "2025-08-10":
		return Result{
			Status: StatusSuccess,
			Buses: []BusOption{
				{BusID: "BUS456", OperatorName: "Green Ways", DepartureTime: "07:00", ArrivalTime: "12:00", PricePerSeat: 700, AvailableSeats: 20},
			},
		}
	default:
		return errorResult(fmt.Sprintf("No buses found from '%s' to '%s' on '%s'.", origin, destination, travelDate))
	}
}

// SelectBusAndSeats provisionally holds seats on a bus. At most two seats can
// be held per booking; exceeding the cap returns the error variant, not a
// partial booking.
func SelectBusAndSeats(busID string, numSeatsToBook int, seatPreferences string) Result {
	slog.Info("tool call", "tool", "select_bus_and_seats", "bus_id", busID, "num_seats", numSeatsToBook, "preferences", seatPreferences)

	prefs := seatPreferences
	if prefs == "" {
		prefs = "none"
	}

	switch {
	case busID == "BUS789" && numSeatsToBook >= 1 && numSeatsToBook <= maxBusSeatsPerBooking:
		seats := []string{"W1"}
		if numSeatsToBook == 2 {
			seats = []string{"W1", "W2"}
		}
		return Result{
			Status:           StatusSuccess,
			ProvisionalSeats: seats,
			TotalPrice:       numSeatsToBook * 500,
			Message:          fmt.Sprintf("%d seats (%s) provisionally held on bus %s. Preferences: %s.", numSeatsToBook, strings.Join(seats, ", "), busID, prefs),
		}
	case busID == "BUS456" && numSeatsToBook == 1:
		return Result{
			Status:           StatusSuccess,
			ProvisionalSeats: []string{"F3"},
			TotalPrice:       700,
			Message:          fmt.Sprintf("1 seat (F3) provisionally held on bus %s. Preferences: %s.", busID, prefs),
		}
	default:
		return errorResult(fmt.Sprintf("Could not select %d seats on bus '%s'. They might be unavailable or the bus ID is invalid.", numSeatsToBook, busID))
	}
}

// ConfirmBusBooking finalizes a booking for already-held seats. All passenger
// fields and a non-empty seat list are required; any missing field yields the
// error variant.
func ConfirmBusBooking(busID, passengerName, passengerContact string, seatsBooked []string) Result {
	slog.Info("tool call", "tool", "confirm_bus_booking", "bus_id", busID, "passenger", passengerName, "seats", seatsBooked)

	if passengerName == "" || passengerContact == "" || len(seatsBooked) == 0 {
		return errorResult("Booking confirmation failed. Missing passenger details or seats.")
	}

	pnr := fmt.Sprintf("PNR%s%s", strings.ReplaceAll(busID, "BUS", ""), time.Now().Format("150405"))
	return Result{
		Status:    StatusSuccess,
		PNRNumber: pnr,
		Message: fmt.Sprintf("Booking confirmed for %s on bus %s for seats %s. PNR: %s. Contact: %s",
			passengerName, busID, strings.Join(seatsBooked, ", "), pnr, passengerContact),
	}
}
