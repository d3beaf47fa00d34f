// Package prompt turns an InteractionRequest into the final prompt text.
//
// Formatting resolves the template (by name through a TemplateStore or as
// literal text), substitutes {STEP<n>} chain placeholders from the step
// store, injects the standard bindings (user_input, agent_name, COMMANDS,
// context, command_list, date) and finally replaces every single-braced
// token that has a binding. The result carries an approximate token count
// produced by a pluggable Tokenizer.
package prompt
