// Package log builds the application's *slog.Logger.
//
// Every logger returned by this package is wrapped in a SecureHandler that
// masks credentials before they reach the output: request headers and cookies
// configured for a site, token-like values, and secrets carried in crawled
// URLs (user info and query parameters such as ?token= or ?sig=).
//
// Terminal output is rendered by charmbracelet/log; NewSecureJSONLogger emits
// one JSON object per record for log aggregation.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("fetching", "url", "https://user:pw@cafe.example/?token=abc")
//	// url=https://***REDACTED***@cafe.example/?token=***REDACTED***
package log
