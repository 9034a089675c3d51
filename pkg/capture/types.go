package capture

// Message is one role/content pair of an LLM request's conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Output holds the reconstructed response content of an LLM call.
type Output struct {
	Content string `json:"content"`
}

// Location identifies the source line an instrumented call was issued from.
type Location struct {
	File       string `json:"file"`
	LineNumber string `json:"lineNumber"`
}

// UnknownLocation is used when neither the caller nor the stack walk could
// identify a call site.
var UnknownLocation = Location{File: "unknown", LineNumber: "0"}

// CallRecord is the normalized record of a single captured LLM call. One
// CallRecord is written per line of an event file.
type CallRecord struct {
	DurationMs  int64          `json:"durationMs"`
	Tag         string         `json:"tag"`
	Input       []Message      `json:"input"`
	Output      *Output        `json:"output"`      // nil when the response could not be parsed
	Model       *string        `json:"model"`       // nil when the request could not be parsed
	ModelParams map[string]any `json:"modelParams"` // every request key except model and messages
	StartTimeMs int64          `json:"startTimeMs"` // unix milliseconds, taken before the network call
	EndTimeMs   int64          `json:"endTimeMs"`   // unix milliseconds, taken when the call completed
	URL         string         `json:"url"`
	Location    Location       `json:"location"`

	// IsLLMRequest is always true for built records. It is not persisted;
	// readers restore it because event files only ever hold LLM calls.
	IsLLMRequest bool `json:"-"`
}

// RegistrySchema is the current version of the registry document.
const RegistrySchema = 1

// RegistryEntry tracks one call site in the registry.
type RegistryEntry struct {
	Tag       string `json:"tag"`
	FirstSeen string `json:"firstSeen"` // RFC 3339 UTC, immutable after creation
	LastSeen  string `json:"lastSeen"`  // RFC 3339 UTC
	Count     int    `json:"count"`
}

// Registry is the persisted index of call sites, keyed by file then line.
type Registry struct {
	Schema int                                 `json:"schema"`
	Files  map[string]map[string]RegistryEntry `json:"files"`
}

// NewRegistry returns an empty registry at the current schema version.
func NewRegistry() *Registry {
	return &Registry{
		Schema: RegistrySchema,
		Files:  make(map[string]map[string]RegistryEntry),
	}
}
