package respond

import (
	"regexp"
)

var (
	// password inside a DSN or URL
	dsnPasswordPattern = regexp.MustCompile(`://([^:/@]+):([^@]+)@`)

	// PEM block from a service-account key
	privateKeyPattern = regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[^-]*-----END [A-Z ]*PRIVATE KEY-----`)

	// IndexNow key carried in a query string or JSON body
	indexNowKeyPattern = regexp.MustCompile(`("key"\s*:\s*"|[?&]key=)[A-Za-z0-9-]{8,128}`)
)

// SanitizeError returns the error message with credentials masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = privateKeyPattern.ReplaceAllString(msg, "****")
	msg = dsnPasswordPattern.ReplaceAllString(msg, "://$1:****@")
	msg = indexNowKeyPattern.ReplaceAllString(msg, "${1}****")
	return msg
}
