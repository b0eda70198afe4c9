package ir

// Version constants for the process schema and engine.
const (
	// SchemaVersion is the version of the compiled process definition schema.
	SchemaVersion = "1"

	// EngineVersion is the txflow engine version.
	EngineVersion = "0.1.0"
)
