// Package record turns a captured request/response exchange into the
// normalized capture.CallRecord written to event files.
package record

import (
	"time"

	"github.com/trainloop/capture/pkg/capture"
	"github.com/trainloop/capture/pkg/capture/decode"
)

// Exchange is the raw material of one intercepted call.
type Exchange struct {
	URL          string
	Tag          string
	RequestBody  []byte // capped request bytes
	ResponseBody []byte // capped response bytes, possibly gzip or SSE
	StartTime    time.Time
	EndTime      time.Time
	Location     capture.Location

	// TransportErr is set when the round trip itself failed. Its text
	// becomes the output content.
	TransportErr error
}

// Build normalizes ex into a CallRecord. It never fails: an unparsed request
// yields empty input and a nil model, an unparsed response yields a nil
// output. The returned error only reports a decode step that was skipped.
func Build(ex Exchange) (capture.CallRecord, error) {
	rec := capture.CallRecord{
		Tag:          ex.Tag,
		Input:        []capture.Message{},
		ModelParams:  map[string]any{},
		URL:          ex.URL,
		Location:     ex.Location,
		IsLLMRequest: true,
	}

	rec.StartTimeMs = ex.StartTime.UnixMilli()
	rec.EndTimeMs = ex.EndTime.UnixMilli()
	rec.DurationMs = max(rec.EndTimeMs-rec.StartTimeMs, 0)

	if rec.Location.File == "" {
		rec.Location = capture.UnknownLocation
	}

	if req := decode.ParseRequest(ex.RequestBody); req != nil {
		model := req.Model
		rec.Model = &model
		rec.Input = req.Messages
		rec.ModelParams = req.ModelParams
	}

	if ex.TransportErr != nil {
		rec.Output = &capture.Output{Content: ex.TransportErr.Error()}
		return rec, nil
	}

	body, err := decode.Reconstruct(ex.ResponseBody)
	rec.Output = decode.ParseResponse(body)
	return rec, err
}
