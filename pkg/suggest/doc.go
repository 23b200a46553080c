// Package suggest produces the AI suggestions protected by the daily quota.
//
// A Generator turns a Request into a Suggestion. OpenAIGenerator talks to any
// OpenAI-compatible chat completions endpoint, StaticGenerator is a
// deterministic local stand-in for development, and Fallback holds the fixed
// gentle content returned when generation fails.
package suggest
