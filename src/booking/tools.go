package booking

import (
	"context"
	"encoding/json"
	"fmt"

	agent "github.com/Protocol-Lattice/booking-agents"
)

// Argument extraction helpers. A missing required argument is a malformed
// call contract and therefore a Go error, unlike business-level failures
// which stay inside the Result payload.

func stringArg(args map[string]any, name string, required bool) (string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		if required {
			return "", fmt.Errorf("missing required argument: %s", name)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %s must be a string", name)
	}
	return s, nil
}

func intArg(args map[string]any, name string) (int, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return 0, fmt.Errorf("missing required argument: %s", name)
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("argument %s must be an integer", name)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("argument %s must be an integer", name)
	}
}

func stringSliceArg(args map[string]any, name string) ([]string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil, fmt.Errorf("missing required argument: %s", name)
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("argument %s must be a list of strings", name)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("argument %s must be a list of strings", name)
	}
}

func toToolResponse(res Result) (agent.ToolResponse, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return agent.ToolResponse{}, fmt.Errorf("encode tool result: %w", err)
	}
	return agent.ToolResponse{
		Content:  string(payload),
		Metadata: map[string]string{"status": res.Status},
	}, nil
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// ---------------------------------------------------------------- bus tools

type busFinderTool struct{}

func (busFinderTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "find_available_buses",
		Description: "Finds available buses based on origin, destination, and travel date.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"origin":      stringProp("The starting city for the bus journey."),
				"destination": stringProp("The ending city for the bus journey."),
				"travel_date": stringProp("The date of travel in YYYY-MM-DD format."),
			},
			"required": []string{"origin", "destination", "travel_date"},
		},
	}
}

func (busFinderTool) Invoke(_ context.Context, req agent.ToolRequest) (agent.ToolResponse, error) {
	origin, err := stringArg(req.Arguments, "origin", true)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	destination, err := stringArg(req.Arguments, "destination", true)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	travelDate, err := stringArg(req.Arguments, "travel_date", true)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	return toToolResponse(FindAvailableBuses(origin, destination, travelDate))
}

type busSeatSelectionTool struct{}

func (busSeatSelectionTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "select_bus_and_seats",
		Description: "Selects a specific bus and number of seats, optionally with preferences.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"bus_id":            stringProp("The ID of the bus selected from the search results."),
				"num_seats_to_book": map[string]any{"type": "integer", "description": "The number of seats to book."},
				"seat_preferences":  stringProp("Optional seat preferences, e.g. 'window' or 'aisle'."),
			},
			"required": []string{"bus_id", "num_seats_to_book"},
		},
	}
}

func (busSeatSelectionTool) Invoke(_ context.Context, req agent.ToolRequest) (agent.ToolResponse, error) {
	busID, err := stringArg(req.Arguments, "bus_id", true)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	numSeats, err := intArg(req.Arguments, "num_seats_to_book")
	if err != nil {
		return agent.ToolResponse{}, err
	}
	prefs, err := stringArg(req.Arguments, "seat_preferences", false)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	return toToolResponse(SelectBusAndSeats(busID, numSeats, prefs))
}

type busConfirmationTool struct{}

func (busConfirmationTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "confirm_bus_booking",
		Description: "Confirms a bus booking with passenger details for already selected seats.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"bus_id":            stringProp("The ID of the bus for which seats were provisionally held."),
				"passenger_name":    stringProp("The full name of the primary passenger."),
				"passenger_contact": stringProp("The contact number of the primary passenger."),
				"seats_booked": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "The provisionally selected seat identifiers, e.g. ['W1','W2'].",
				},
			},
			"required": []string{"bus_id", "passenger_name", "passenger_contact", "seats_booked"},
		},
	}
}

func (busConfirmationTool) Invoke(_ context.Context, req agent.ToolRequest) (agent.ToolResponse, error) {
	busID, err := stringArg(req.Arguments, "bus_id", true)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	name, err := stringArg(req.Arguments, "passenger_name", true)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	contact, err := stringArg(req.Arguments, "passenger_contact", true)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	seats, err := stringSliceArg(req.Arguments, "seats_booked")
	if err != nil {
		return agent.ToolResponse{}, err
	}
	return toToolResponse(ConfirmBusBooking(busID, name, contact, seats))
}

// BusTools returns the bus specialist's tool set in its prescribed order.
func BusTools() []agent.Tool {
	return []agent.Tool{busFinderTool{}, busSeatSelectionTool{}, busConfirmationTool{}}
}

// -------------------------------------------------------------- movie tools

type showtimeFinderTool struct{}

func (showtimeFinderTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "find_movie_showtimes",
		Description: "Finds available showtimes for a specific movie in a given location and date.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"movie":    stringProp("The name of the movie to search for."),
				"location": stringProp("The city where the user wants to watch the movie."),
				"date":     stringProp("The desired date in YYYY-MM-DD format."),
			},
			"required": []string{"movie", "location", "date"},
		},
	}
}

func (showtimeFinderTool) Invoke(_ context.Context, req agent.ToolRequest) (agent.ToolResponse, error) {
	movie, err := stringArg(req.Arguments, "movie", true)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	location, err := stringArg(req.Arguments, "location", true)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	date, err := stringArg(req.Arguments, "date", true)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	return toToolResponse(FindMovieShowtimes(movie, location, date))
}

type movieSeatSelectionTool struct{}

func (movieSeatSelectionTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "select_movie_seats",
		Description: "Selects a number of seats for a given movie showtime, with optional preferences.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"showtime":    stringProp("The showtime selected by the user, e.g. '14:00'."),
				"num_seats":   map[string]any{"type": "integer", "description": "The number of seats to book."},
				"preferences": stringProp("Optional seating preferences, e.g. 'front row'."),
			},
			"required": []string{"showtime", "num_seats"},
		},
	}
}

func (movieSeatSelectionTool) Invoke(_ context.Context, req agent.ToolRequest) (agent.ToolResponse, error) {
	showtime, err := stringArg(req.Arguments, "showtime", true)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	numSeats, err := intArg(req.Arguments, "num_seats")
	if err != nil {
		return agent.ToolResponse{}, err
	}
	prefs, err := stringArg(req.Arguments, "preferences", false)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	return toToolResponse(SelectMovieSeats(showtime, numSeats, prefs))
}

type movieConfirmationTool struct{}

func (movieConfirmationTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "confirm_movie_booking",
		Description: "Confirms a movie ticket booking for the selected movie, showtime, and seats.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"movie":    stringProp("The name of the movie being booked."),
				"showtime": stringProp("The showtime for which the booking is being made."),
				"seats": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "The selected seat identifiers, e.g. ['A5','A6'].",
				},
			},
			"required": []string{"movie", "showtime", "seats"},
		},
	}
}

func (movieConfirmationTool) Invoke(_ context.Context, req agent.ToolRequest) (agent.ToolResponse, error) {
	movie, err := stringArg(req.Arguments, "movie", true)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	showtime, err := stringArg(req.Arguments, "showtime", true)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	seats, err := stringSliceArg(req.Arguments, "seats")
	if err != nil {
		return agent.ToolResponse{}, err
	}
	return toToolResponse(ConfirmMovieBooking(movie, showtime, seats))
}

// MovieTools returns the movie specialist's tool set in its prescribed order.
func MovieTools() []agent.Tool {
	return []agent.Tool{showtimeFinderTool{}, movieSeatSelectionTool{}, movieConfirmationTool{}}
}
