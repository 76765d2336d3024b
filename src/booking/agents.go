package booking

import (
	"log/slog"

	agent "github.com/Protocol-Lattice/booking-agents"
	"github.com/Protocol-Lattice/booking-agents/src/models"
)

const (
	// BusAgentName is the well-known name of the bus specialist.
	BusAgentName = "bus_booking_agent"
	// MovieAgentName is the well-known name of the movie specialist.
	MovieAgentName = "movie_ticket_agent"
)

// Capability summaries advertised on the specialists' agent cards.
var (
	BusCapabilities   = []string{"finding bus routes", "checking bus seat availability", "booking bus tickets"}
	MovieCapabilities = []string{"finding movie showtimes", "selecting seats", "confirming movie bookings"}
)

const busInstruction = "You are a helpful assistant for booking bus tickets. Your tasks are:\n" +
	"1. Find available buses: When a user wants to find buses, use the 'find_available_buses' tool. You'll need the origin city, destination city, and travel date (YYYY-MM-DD).\n" +
	"2. Select bus and seats: After buses are found and the user chooses one, use the 'select_bus_and_seats' tool. You'll need the bus ID and the number of seats. Seat preferences are optional.\n" +
	"3. Confirm booking: To finalize the booking, use the 'confirm_bus_booking' tool. You'll need the bus ID, primary passenger's name, passenger's contact number, and the list of seats that were selected.\n" +
	"Always ask for any missing information before calling a tool. Provide clear summaries of tool outputs."

const movieInstruction = "You are a helpful and friendly assistant for booking movie tickets. " +
	"Use the available tools to find showtimes, select seats, and confirm bookings based on the user's requests. " +
	"Ensure you gather all necessary information for each step. To find showtimes, you need the movie, location, and date. " +
	"For seat selection, you need the showtime and number of seats. For booking confirmation, you need movie, showtime, and the list of selected seats."

// NewBusAgent builds the bus booking specialist around the provided model.
// A nil tools slice uses the in-process bus tool set.
func NewBusAgent(model models.Agent, tools []agent.Tool, logger *slog.Logger) (*agent.Agent, error) {
	if tools == nil {
		tools = BusTools()
	}
	return agent.New(agent.Options{
		Name:        BusAgentName,
		Description: "Agent to help users find and book bus tickets.",
		Instruction: busInstruction,
		Model:       model,
		Tools:       tools,
		Logger:      logger,
	})
}

// NewMovieAgent builds the movie ticket specialist around the provided model.
// A nil tools slice uses the in-process movie tool set.
func NewMovieAgent(model models.Agent, tools []agent.Tool, logger *slog.Logger) (*agent.Agent, error) {
	if tools == nil {
		tools = MovieTools()
	}
	return agent.New(agent.Options{
		Name:        MovieAgentName,
		Description: "Agent to help users book movie tickets by finding showtimes, selecting seats, and confirming bookings.",
		Instruction: movieInstruction,
		Model:       model,
		Tools:       tools,
		Logger:      logger,
	})
}
