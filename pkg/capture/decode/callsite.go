package decode

import (
	"path"
	"reflect"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"github.com/trainloop/capture/pkg/capture"
)

// internalPrefix marks frames inside the capture library itself. Test files
// under it still count as call sites.
const internalPrefix = "github.com/trainloop/capture/pkg/"

// DefaultSkipPrefixes lists client libraries whose frames are never reported
// as the call site.
var DefaultSkipPrefixes = []string{
	"github.com/openai/openai-go",
	"github.com/anthropics/anthropic-sdk-go",
}

const maxStackDepth = 64

// CallerSite walks the stack above skip frames and returns the first frame
// that belongs to application code. Standard library and runtime frames,
// this library's own frames, and frames whose function starts with one of
// skipPrefixes are passed over. A nil skipPrefixes uses DefaultSkipPrefixes.
//
// It returns capture.UnknownLocation when no frame qualifies.
func CallerSite(skip int, skipPrefixes []string) capture.Location {
	if skipPrefixes == nil {
		skipPrefixes = DefaultSkipPrefixes
	}

	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return capture.UnknownLocation
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.File != "" && isApplicationFrame(frame, skipPrefixes) {
			return capture.Location{
				File:       frame.File,
				LineNumber: strconv.Itoa(frame.Line),
			}
		}
		if !more {
			break
		}
	}
	return capture.UnknownLocation
}

func isApplicationFrame(frame runtime.Frame, skipPrefixes []string) bool {
	fn := frame.Function
	if fn == "" {
		return false
	}
	if isStdlib(fn, frame.File) {
		return false
	}
	if strings.HasPrefix(fn, internalPrefix) && !strings.HasSuffix(frame.File, "_test.go") {
		return false
	}
	for _, p := range skipPrefixes {
		if p != "" && strings.HasPrefix(fn, p) {
			return false
		}
	}
	return true
}

// isStdlib reports whether the frame for fn, declared in file, belongs to
// the standard library.
func isStdlib(fn, file string) bool {
	return stdlibFrame(fn, file, goSourceRoot(), buildModules())
}

// stdlibFrame decides by location when the binary keeps absolute source
// paths: standard library files live under src, the GOROOT source
// directory. Without one (-trimpath builds) it falls back to the import
// path: a dotless path outside every module of the build is standard
// library.
func stdlibFrame(fn, file, src string, modules []string) bool {
	if strings.HasPrefix(fn, "main.") {
		return false
	}
	pkg := funcPackage(fn)
	first, _, _ := strings.Cut(pkg, "/")
	if strings.Contains(first, ".") {
		return false
	}
	if src != "" && path.IsAbs(file) {
		return strings.HasPrefix(file, src+"/")
	}
	for _, m := range modules {
		if pkg == m || strings.HasPrefix(pkg, m+"/") {
			return false
		}
	}
	return true
}

// funcPackage returns the import path of a fully qualified function name,
// e.g. "myapp/internal/svc" for "myapp/internal/svc.(*Svc).Generate".
func funcPackage(fn string) string {
	if i := strings.IndexByte(fn, '['); i >= 0 {
		fn = fn[:i]
	}
	dir, name := "", fn
	if i := strings.LastIndexByte(fn, '/'); i >= 0 {
		dir, name = fn[:i+1], fn[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return dir + name
}

// goSourceRoot returns the GOROOT src directory recorded in this binary, or
// "" when source paths were trimmed.
var goSourceRoot = sync.OnceValue(func() string {
	pc := reflect.ValueOf(runtime.Gosched).Pointer()
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ""
	}
	file, _ := fn.FileLine(pc)
	dir := path.Dir(file)
	if !path.IsAbs(dir) || path.Base(dir) != "runtime" {
		return ""
	}
	return path.Dir(dir)
})

// buildModules lists the main module and every dependency of the binary.
var buildModules = sync.OnceValue(func() []string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	mods := make([]string, 0, len(info.Deps)+1)
	if info.Main.Path != "" {
		mods = append(mods, info.Main.Path)
	}
	for _, d := range info.Deps {
		mods = append(mods, d.Path)
	}
	return mods
})
