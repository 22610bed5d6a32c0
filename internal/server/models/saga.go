package models

import "time"

// SagaState is the durable state of a generation saga row.
type SagaState string

const (
	SagaPending    SagaState = "pending"
	SagaUploaded   SagaState = "uploaded"
	SagaCommitted  SagaState = "committed"
	SagaRolledBack SagaState = "rolled_back"
)

// GenerationSaga records an upload so orphans can be found after a crash.
type GenerationSaga struct {
	MemeID     string
	StorageKey string
	State      SagaState
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
