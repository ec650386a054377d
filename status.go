package rangeserve

import "net/http"

func isStatusSuccess(statusCode int) bool {
	// Not mega-robust, but good enough for our use-case.
	return statusCode >= 200 && statusCode < 300
}

func isPartialContent(statusCode int) bool {
	return statusCode == http.StatusPartialContent
}
