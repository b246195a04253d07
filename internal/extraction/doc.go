// Package extraction implements the classification and extraction protocol:
// a transcript is first classified into one of the closed set of categories,
// then a category-specific prompt asks the language model for a structured
// record. Records are checked against a per-category Go struct before they
// are accepted, but are stored exactly as the model returned them.
package extraction
