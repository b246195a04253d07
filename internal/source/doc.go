// Package source fetches recorded audio referenced by a work item's source
// locator. Locators are plain paths or file:// URLs, http(s):// URLs and
// s3://bucket/key object references; a Router dispatches on the scheme.
package source
