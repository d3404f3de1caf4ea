package interfaces

// Repository defines the interface for data persistence.
// Lookups by identifier return (nil, nil) when the entity does not exist; constraint
// violations and backend faults are returned as errors.
type Repository interface {
	User() UserRepository
	Meeting() MeetingRepository
	Transcript() TranscriptRepository
	Task() TaskRepository
	Integration() IntegrationRepository

	Close() error
}
