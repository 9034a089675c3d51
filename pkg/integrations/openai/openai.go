// Package openai connects the OpenAI Go SDK to a capture session.
//
//	client := openaisdk.NewClient(openai.Options(s)...)
//	resp, err := client.Chat.Completions.New(ctx, params, openai.WithTag("summarize"))
package openai

import (
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/trainloop/capture/pkg/capture"
	"github.com/trainloop/capture/pkg/session"
)

// Options returns client options that send the SDK's requests through the
// session's capturing HTTP client. Later options may override the base URL
// or API key as usual.
func Options(s *session.Session) []option.RequestOption {
	return []option.RequestOption{
		option.WithHTTPClient(s.HTTPClient()),
	}
}

// NewClient builds an OpenAI client whose calls s captures.
func NewClient(s *session.Session, opts ...option.RequestOption) openaisdk.Client {
	return openaisdk.NewClient(append(Options(s), opts...)...)
}

// WithTag tags a single request.
func WithTag(tag string) option.RequestOption {
	return option.WithHeader(capture.TagHeader, tag)
}
