package core

// Default values applied by NewRequest.
const (
	DefaultContextDepth   = 5
	DefaultWebSearchDepth = 3
)

// InteractionRequest captures everything a single engine run needs.
type InteractionRequest struct {
	// UserInput is the raw user text, injected as {user_input}.
	UserInput string

	// Template is a template name or literal template text. Empty means the
	// user input itself is used as the template.
	Template string

	// ContextDepth is the top-k hint for memory context retrieval. Negative
	// values are clamped to zero.
	ContextDepth int

	WebSearch      bool
	WebSearchDepth int

	// ChainName and StepNumber identify a chain step. StepNumber selects the
	// {STEP<n>} token that is resolved from the step store.
	ChainName  string
	StepNumber int

	Shots     int
	LearnFile string

	// Bindings are extra named template values. They override the standard
	// bindings of the same name.
	Bindings map[string]any
}

// NewRequest creates a request with default depths and applies optFns.
func NewRequest(userInput string, optFns ...func(r *InteractionRequest)) InteractionRequest {
	r := InteractionRequest{
		UserInput:      userInput,
		ContextDepth:   DefaultContextDepth,
		WebSearchDepth: DefaultWebSearchDepth,
		Shots:          1,
		Bindings:       map[string]any{},
	}

	for _, fn := range optFns {
		fn(&r)
	}

	return r.Normalize()
}

// Normalize returns a copy with clamped depths and a private bindings map.
func (r InteractionRequest) Normalize() InteractionRequest {
	if r.ContextDepth < 0 {
		r.ContextDepth = 0
	}
	if r.WebSearchDepth < 0 {
		r.WebSearchDepth = 0
	}
	if r.Shots < 1 {
		r.Shots = 1
	}

	bindings := make(map[string]any, len(r.Bindings))
	for k, v := range r.Bindings {
		bindings[k] = v
	}
	r.Bindings = bindings

	return r
}

// InChain reports whether the request refers to a chain step.
func (r InteractionRequest) InChain() bool { return r.ChainName != "" }

// WithBinding returns a copy of r with key bound to value.
func (r InteractionRequest) WithBinding(key string, value any) InteractionRequest {
	r = r.Normalize()
	r.Bindings[key] = value
	return r
}
