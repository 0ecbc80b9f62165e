package dispatch

import "gridpatrol/grid"

// Emitter is the interface adapters must satisfy to bridge dispatch events to the engine.
type Emitter interface {
	EmitCommandAccepted(cmd Command)
	EmitCommandRejected(commandID string, kind Kind, target grid.Coordinate, source, reason, detail string)
	EmitCommandResolved(res Result)
	EmitCaptureTaken(commandID string, target grid.Coordinate, filename string, err error)
}
