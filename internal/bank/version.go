package bank

// Version constants for the bank schema and scoring engine.
const (
	// SchemaVersion is the bank document schema version.
	SchemaVersion = "1"

	// EngineVersion is the facet engine version.
	EngineVersion = "0.1.0"
)
