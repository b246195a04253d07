package main

import "net/url"

// maskDatabaseURL hides the password of a connection URL for logging.
// SQLite paths have no user info and are returned unchanged.
func maskDatabaseURL(dbURL string) string {
	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}

	if parsedURL.User != nil {
		if _, hasPassword := parsedURL.User.Password(); hasPassword {
			parsedURL.User = url.UserPassword(parsedURL.User.Username(), "****")
			return parsedURL.String()
		}
	}

	return dbURL
}
