package core

// NoCommandSentinel is the command name a model emits to signal that no
// command should run.
const NoCommandSentinel = "None."

// CommandInvocation is a command name plus its arguments as extracted from
// model output.
type CommandInvocation struct {
	Name string
	Args map[string]any
}

// StructuredResponse is the parsed structured object of a model reply. The
// zero value means no object was found.
type StructuredResponse struct {
	// Raw is the extracted object text. Empty when nothing was found.
	Raw string

	Response    string
	HasResponse bool

	// Commands keeps the document order of the "commands" object.
	Commands []CommandInvocation
	// CommandsRaw is the "commands" object as written by the model.
	CommandsRaw string
}

// Found reports whether a structured object was extracted.
func (s StructuredResponse) Found() bool { return s.Raw != "" }
