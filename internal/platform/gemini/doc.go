// Package gemini provides an implementation of the llm.Provider interface
// that uses Google's Gemini API.
//
// This package is an infrastructure adapter, connecting the application's
// language-model client to Google's external Gemini AI service without exposing
// the details of the external service to the core application.
//
// Key components:
//
// 1. Provider:
//   - Implements the llm.Provider interface
//   - Maps chat messages onto Gemini contents, with system messages
//     becoming the system instruction
//
// 2. Error Handling:
//   - Implements retry logic with exponential backoff for transient errors
//   - Translates safety blocks and empty candidates to llm errors
//
// The package depends on the google.golang.org/genai client library.
package gemini
