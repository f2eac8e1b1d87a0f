// Package llm wraps an OpenAI-compatible chat completion API with tool
// calling for the agentic dispatcher. The model is treated as an untrusted
// oracle: its tool selections and arguments are validated by the caller
// before anything executes.
package llm
