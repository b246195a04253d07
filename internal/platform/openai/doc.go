// Package openai implements llm.Provider for OpenAI-compatible chat-completions
// endpoints. The same adapter serves OpenRouter, FreeQwen-style gateways and
// local LM Studio or text-generation-webui servers; they differ only in base URL,
// model name, API key and extra request headers.
package openai
