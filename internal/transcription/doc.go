// Package transcription defines the speech-to-text contract used by the
// task runner, along with helpers shared by its backends: language
// normalisation, segment joining and progress reporting.
//
// Backends live in subpackages: openai talks to a hosted Whisper API and
// whispercpp runs a local whisper.cpp binary.
package transcription
