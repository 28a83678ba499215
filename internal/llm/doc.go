// Package llm provides the language model suggestion service for
// transaction categorization. It supports multiple providers including
// OpenAI and Anthropic, with retry logic, rate limiting, and response
// caching.
package llm
