// Package llm provides tool-calling chat clients for language model
// providers. It supports Anthropic and OpenAI plus an offline template
// provider, with retry logic and rate limiting layered on top.
package llm
