// Package booking holds the mock bus and movie booking services: pure
// lookups against literal demo data, exposed both as plain functions and as
// runtime tools.
package booking

// Result statuses. Business failures (unknown route, seat cap exceeded,
// missing confirmation fields) are reported through the error variant of
// Result, never through a Go error.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BusOption is one bus offered for a route/date lookup.
type BusOption struct {
	BusID          string `json:"bus_id"`
	OperatorName   string `json:"operator_name"`
	DepartureTime  string `json:"departure_time"`
	ArrivalTime    string `json:"arrival_time"`
	PricePerSeat   int    `json:"price_per_seat"`
	AvailableSeats int    `json:"available_seats"`
}

// Result is the tagged outcome every mock tool returns: status success with
// a payload, or status error with an error message.
type Result struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`

	// Bus payloads.
	Buses            []BusOption `json:"buses,omitempty"`
	ProvisionalSeats []string    `json:"provisional_seats,omitempty"`
	TotalPrice       int         `json:"total_price,omitempty"`
	PNRNumber        string      `json:"pnr_number,omitempty"`

	// Movie payloads.
	Showtimes []string `json:"showtimes,omitempty"`
	Seats     []string `json:"seats,omitempty"`
	BookingID string   `json:"booking_id,omitempty"`

	Message string `json:"message,omitempty"`
}

// OK reports whether the result carries the success tag.
func (r Result) OK() bool { return r.Status == StatusSuccess }

func errorResult(message string) Result {
	return Result{Status: StatusError, ErrorMessage: message}
}
