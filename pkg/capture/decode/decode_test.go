package decode

import (
	"bytes"
	"compress/gzip"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/trainloop/capture/pkg/capture"
)

func TestClassifier_IsLLMCall(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"openai", "https://api.openai.com/v1/chat/completions", true},
		{"anthropic", "https://api.anthropic.com/v1/messages", true},
		{"uppercase host", "https://API.OPENAI.COM/v1/chat/completions", true},
		{"host with port", "https://api.openai.com:443/v1/models", true},
		{"other host", "https://example.com/v1/chat/completions", false},
		{"subdomain", "https://eu.api.openai.com/v1", false},
		{"garbage", "://nope", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsLLMURL(tt.url); got != tt.want {
				t.Errorf("IsLLMURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}

	if c.IsLLMCall(nil) {
		t.Error("IsLLMCall(nil) = true, want false")
	}
}

func TestClassifier_SetAllowlist(t *testing.T) {
	c := NewClassifier([]string{"llm.internal"})
	u, _ := url.Parse("http://llm.internal/v1/chat")

	if !c.IsLLMCall(u) {
		t.Fatal("expected custom host to match")
	}
	if c.IsLLMURL("https://api.openai.com/v1") {
		t.Error("default host should not match a custom allowlist")
	}

	c.SetAllowlist([]string{" Other.Host "})
	if c.IsLLMCall(u) {
		t.Error("old host still matches after swap")
	}
	if !c.IsLLMURL("https://other.host/x") {
		t.Error("new host does not match after swap")
	}
	if got := c.Allowlist(); len(got) != 1 || got[0] != "other.host" {
		t.Errorf("Allowlist() = %v, want [other.host]", got)
	}

	c.SetAllowlist(nil)
	if len(c.Allowlist()) != len(DefaultHostAllowlist) {
		t.Errorf("empty allowlist should fall back to defaults, got %v", c.Allowlist())
	}
}

func TestPopTag(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h["x-trainloop-tag"] = []string{" greeting "}
	h[capture.TagHeader] = []string{"greeting"}

	if got := PopTag(h); got != "greeting" {
		t.Errorf("PopTag() = %q, want %q", got, "greeting")
	}
	for k := range h {
		if strings.EqualFold(k, capture.TagHeader) {
			t.Errorf("tag header %q still present", k)
		}
	}
	if h.Get("Content-Type") == "" {
		t.Error("unrelated header removed")
	}

	if got := PopTag(http.Header{}); got != "" {
		t.Errorf("PopTag(empty) = %q, want empty", got)
	}
	if got := PopTag(nil); got != "" {
		t.Errorf("PopTag(nil) = %q, want empty", got)
	}
}

func TestCapBuffer(t *testing.T) {
	b := NewCapBuffer(8)

	n, err := b.Write([]byte("hello"))
	if n != 5 || err != nil {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	n, err = b.Write([]byte(" world"))
	if n != 6 || err != nil {
		t.Fatalf("Write() past limit = %d, %v; want full length and nil", n, err)
	}
	if got := string(b.Bytes()); got != "hello wo" {
		t.Errorf("Bytes() = %q, want %q", got, "hello wo")
	}
	if !b.Truncated() {
		t.Error("Truncated() = false after overflow")
	}
	if _, err := b.Write([]byte("more")); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 8 {
		t.Errorf("Len() = %d, want 8", b.Len())
	}
}

func TestCap_ExactLimit(t *testing.T) {
	big := bytes.Repeat([]byte("a"), DefaultMaxBodyBytes+1024)

	if got := len(Cap(big, 0)); got != DefaultMaxBodyBytes {
		t.Errorf("len(Cap(big)) = %d, want %d", got, DefaultMaxBodyBytes)
	}
	if got := len(Cap([]byte("short"), 0)); got != 5 {
		t.Errorf("short body was altered: %d", got)
	}

	b := NewCapBuffer(0)
	for i := 0; i < 3; i++ {
		b.Write(big[:DefaultMaxBodyBytes/2+7])
	}
	if b.Len() != DefaultMaxBodyBytes {
		t.Errorf("CapBuffer default limit kept %d bytes, want %d", b.Len(), DefaultMaxBodyBytes)
	}
}

func TestParseRequest(t *testing.T) {
	body := []byte(`{
		"model": "gpt-4o",
		"messages": [
			{"role": "system", "content": "be brief"},
			{"role": "user", "content": [{"type": "text", "text": "hi "}, {"type": "text", "text": "there"}]}
		],
		"temperature": 0.2,
		"stream": true
	}`)

	req := ParseRequest(body)
	if req == nil {
		t.Fatal("ParseRequest() = nil")
	}
	if req.Model != "gpt-4o" {
		t.Errorf("Model = %q", req.Model)
	}
	want := []capture.Message{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hi there"}}
	if len(req.Messages) != len(want) {
		t.Fatalf("Messages = %+v", req.Messages)
	}
	for i := range want {
		if req.Messages[i] != want[i] {
			t.Errorf("Messages[%d] = %+v, want %+v", i, req.Messages[i], want[i])
		}
	}
	if _, ok := req.ModelParams["model"]; ok {
		t.Error("model leaked into ModelParams")
	}
	if req.ModelParams["temperature"] != 0.2 || req.ModelParams["stream"] != true {
		t.Errorf("ModelParams = %v", req.ModelParams)
	}
}

func TestParseRequest_Unparsed(t *testing.T) {
	for name, body := range map[string]string{
		"empty":           "",
		"not json":        "model=gpt",
		"no messages":     `{"model":"gpt-4o","prompt":"hi"}`,
		"no model":        `{"messages":[]}`,
		"messages scalar": `{"model":"m","messages":"hi"}`,
		"array":           `[1,2,3]`,
	} {
		t.Run(name, func(t *testing.T) {
			if got := ParseRequest([]byte(body)); got != nil {
				t.Errorf("ParseRequest(%q) = %+v, want nil", body, got)
			}
		})
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *capture.Output
	}{
		{"content string", `{"content":"Hello"}`, &capture.Output{Content: "Hello"}},
		{"nested content", `{"content":{"content":"Hi"}}`, &capture.Output{Content: "Hi"}},
		{"openai message", `{"choices":[{"message":{"role":"assistant","content":"X"}}]}`, &capture.Output{Content: "X"}},
		{"openai delta", `{"choices":[{"delta":{"content":"d"}}]}`, &capture.Output{Content: "d"}},
		{"anthropic blocks", `{"content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}`, &capture.Output{Content: "ab"}},
		{"empty choices", `{"choices":[]}`, nil},
		{"unknown shape", `{"result":"x"}`, nil},
		{"not json", `data: {"x":1}`, nil},
		{"empty", ``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResponse([]byte(tt.body))
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("ParseResponse() = %+v, want nil", got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("ParseResponse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReconstruct_OpenAISSE(t *testing.T) {
	raw := "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"lo\"}}]}\n\n" +
		"data: [DONE]\n\n"

	out, err := Reconstruct([]byte(raw))
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	if string(out) != `{"content":"Hello"}` {
		t.Errorf("Reconstruct() = %s, want {\"content\":\"Hello\"}", out)
	}
}

func TestReconstruct_AnthropicSSE(t *testing.T) {
	raw := "event: message_start\ndata: {\"type\":\"message_start\"}\n\n" +
		"event: content_block_delta\r\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"<b>\"}}\r\n\r\n" +
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\" & co\"}}\n\n" +
		"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"

	out, err := Reconstruct([]byte(raw))
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	if string(out) != `{"content":"<b> & co"}` {
		t.Errorf("Reconstruct() = %s", out)
	}
}

func TestReconstruct_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(`{"choices":[{"message":{"content":"X"}}]}`))
	zw.Close()

	out, err := Reconstruct(buf.Bytes())
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	got := ParseResponse(out)
	if got == nil || got.Content != "X" {
		t.Errorf("ParseResponse(Reconstruct(gzip)) = %+v, want X", got)
	}
}

func TestReconstruct_GzipSSE(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"zip\"}}]}\n\ndata: [DONE]\n\n"))
	zw.Close()

	out, _ := Reconstruct(buf.Bytes())
	if string(out) != `{"content":"zip"}` {
		t.Errorf("Reconstruct() = %s", out)
	}
}

func TestReconstruct_Degrades(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		wantErr bool
	}{
		{"plain json", []byte(`{"content":"x"}`), false},
		{"broken gzip", []byte{0x1f, 0x8b, 0x00, 0x01}, true},
		{"sse without deltas", []byte("data: not json\n\n"), true},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Reconstruct(tt.raw)
			if !bytes.Equal(out, tt.raw) {
				t.Errorf("Reconstruct() = %q, want original bytes", out)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("Reconstruct() error = %v, wantErr %v", err, tt.wantErr)
			}
			var de *capture.DecodeError
			if err != nil && !errors.As(err, &de) {
				t.Errorf("error %T is not a *capture.DecodeError", err)
			}
		})
	}
}

func TestCallerSite(t *testing.T) {
	loc := CallerSite(0, nil)
	if !strings.HasSuffix(loc.File, "decode_test.go") {
		t.Errorf("CallerSite().File = %q, want this test file", loc.File)
	}
	if loc.LineNumber == "" || loc.LineNumber == "0" {
		t.Errorf("CallerSite().LineNumber = %q", loc.LineNumber)
	}
}

func TestIsStdlib(t *testing.T) {
	src := goSourceRoot()
	if src == "" {
		t.Skip("source paths trimmed from the test binary")
	}

	tests := []struct {
		fn   string
		file string
		want bool
	}{
		{"runtime.goexit", src + "/runtime/asm_amd64.s", true},
		{"net/http.(*Client).do", src + "/net/http/client.go", true},
		{"testing.tRunner", src + "/testing/testing.go", true},
		{"main.main", "/home/dev/myapp/main.go", false},
		{"github.com/acme/app/svc.(*Svc).Generate", "/home/dev/app/svc/svc.go", false},
		{"example.com/x.Run", "/home/dev/x/run.go", false},
		{"myapp/internal/svc.(*Svc).Generate", "/home/dev/myapp/internal/svc/svc.go", false},
		{"myapp.Run", "/home/dev/myapp/run.go", false},
		{"myapp/worker.process.func1", "/home/dev/myapp/worker/worker.go", false},
	}
	for _, tt := range tests {
		if got := isStdlib(tt.fn, tt.file); got != tt.want {
			t.Errorf("isStdlib(%q, %q) = %v, want %v", tt.fn, tt.file, got, tt.want)
		}
	}
}

func TestStdlibFrame_TrimmedPaths(t *testing.T) {
	modules := []string{"myapp", "github.com/openai/openai-go"}

	tests := []struct {
		fn   string
		file string
		want bool
	}{
		{"runtime.goexit", "runtime/asm_amd64.s", true},
		{"net/http.(*Client).do", "net/http/client.go", true},
		{"myapp/internal/svc.(*Svc).Generate", "myapp/internal/svc/svc.go", false},
		{"myapp.Run", "myapp/run.go", false},
		{"myapplication.Run", "myapplication/run.go", true},
	}
	for _, tt := range tests {
		if got := stdlibFrame(tt.fn, tt.file, "", modules); got != tt.want {
			t.Errorf("stdlibFrame(%q) = %v, want %v", tt.fn, got, tt.want)
		}
	}
}

func TestFuncPackage(t *testing.T) {
	tests := map[string]string{
		"runtime.goexit":                          "runtime",
		"net/http.(*Client).do":                   "net/http",
		"myapp.Run":                               "myapp",
		"myapp/internal/svc.(*Svc).Generate":      "myapp/internal/svc",
		"github.com/acme/app.v2/svc.Run.func1":    "github.com/acme/app.v2/svc",
		"gopkg.in/yaml%2ev3.(*decoder).unmarshal": "gopkg.in/yaml%2ev3",
		"myapp.Map[github.com/acme/x.T]":          "myapp",
	}
	for fn, want := range tests {
		if got := funcPackage(fn); got != want {
			t.Errorf("funcPackage(%q) = %q, want %q", fn, got, want)
		}
	}
}

func BenchmarkReconstructSSE(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		sb.WriteString("data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"tok \"}}]}\n\n")
	}
	sb.WriteString("data: [DONE]\n\n")
	raw := []byte(sb.String())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Reconstruct(raw)
	}
}
