// Package anthropic connects the Anthropic Go SDK to a capture session.
package anthropic

import (
	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/trainloop/capture/pkg/capture"
	"github.com/trainloop/capture/pkg/session"
)

// Options returns client options that send the SDK's requests through the
// session's capturing HTTP client.
func Options(s *session.Session) []option.RequestOption {
	return []option.RequestOption{
		option.WithHTTPClient(s.HTTPClient()),
	}
}

// NewClient builds an Anthropic client whose calls s captures.
func NewClient(s *session.Session, opts ...option.RequestOption) anthropicsdk.Client {
	return anthropicsdk.NewClient(append(Options(s), opts...)...)
}

// WithTag tags a single request.
func WithTag(tag string) option.RequestOption {
	return option.WithHeader(capture.TagHeader, tag)
}
