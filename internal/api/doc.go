// Package api exposes the work item pipeline over HTTP: submitting
// recordings by locator or upload, reading an item's status and outcome,
// and listing an owner's items. It translates HTTP concerns to runner and
// store calls and maps their errors to status codes.
package api
