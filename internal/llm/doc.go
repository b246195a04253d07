// Package llm provides a multi-provider language-model client. Providers are
// tried in a fixed order injected at construction; the first one that returns
// non-empty text wins, and every failure is logged and skipped. The package also
// turns free-text model replies into JSON objects, tolerating the fenced code
// blocks that chat models like to wrap their answers in.
//
// Concrete providers live under internal/platform (openai, gemini, ollama) and
// satisfy the Provider interface defined here.
package llm
