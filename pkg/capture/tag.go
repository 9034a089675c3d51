package capture

import "net/http"

// TagHeader is the request header used to tag a call. The transport tap
// removes it before the request reaches the provider.
const TagHeader = "X-Trainloop-Tag"

// Tag returns a header set carrying tag, ready to merge into a request.
func Tag(tag string) http.Header {
	h := make(http.Header, 1)
	h.Set(TagHeader, tag)
	return h
}

// SetTag sets the tag header on h. A nil header is left alone.
func SetTag(h http.Header, tag string) {
	if h == nil {
		return
	}
	h.Set(TagHeader, tag)
}
