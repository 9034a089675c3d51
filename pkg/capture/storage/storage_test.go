package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/trainloop/capture/pkg/capture"
)

func openBackends(t *testing.T) map[string]Backend {
	t.Helper()
	ctx := context.Background()

	local, err := Open(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Open(local) error = %v", err)
	}
	mem, err := Open(ctx, "mem://")
	if err != nil {
		t.Fatalf("Open(mem) error = %v", err)
	}
	db, err := Open(ctx, "sqlite://:memory:")
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}

	backends := map[string]Backend{"local": local, "mem": mem, "sqlite": db}
	t.Cleanup(func() {
		for _, b := range backends {
			b.Close()
		}
	})
	return backends
}

func TestBackend_Contract(t *testing.T) {
	ctx := context.Background()

	for name, b := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := b.Read(ctx, "_registry.json"); !errors.Is(err, capture.ErrNotExist) {
				t.Fatalf("Read(missing) error = %v, want ErrNotExist", err)
			}

			if err := b.Write(ctx, "_registry.json", []byte(`{"schema":1}`)); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if err := b.Write(ctx, "_registry.json", []byte(`{"schema":1,"files":{}}`)); err != nil {
				t.Fatalf("Write() overwrite error = %v", err)
			}
			got, err := b.Read(ctx, "_registry.json")
			if err != nil || string(got) != `{"schema":1,"files":{}}` {
				t.Fatalf("Read() = %q, %v", got, err)
			}

			if err := b.Append(ctx, "events/2.jsonl", []byte("a\n")); err != nil {
				t.Fatalf("Append() create error = %v", err)
			}
			if err := b.Append(ctx, "events/2.jsonl", []byte("b\n")); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
			if err := b.Append(ctx, "events/1.jsonl", []byte("z\n")); err != nil {
				t.Fatal(err)
			}
			got, _ = b.Read(ctx, "events/2.jsonl")
			if string(got) != "a\nb\n" {
				t.Errorf("appended content = %q", got)
			}

			keys, err := b.List(ctx, "events/")
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if want := []string{"events/1.jsonl", "events/2.jsonl"}; !reflect.DeepEqual(keys, want) {
				t.Errorf("List() = %v, want %v", keys, want)
			}

			if err := b.Delete(ctx, "events/1.jsonl"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if err := b.Delete(ctx, "events/1.jsonl"); err != nil {
				t.Errorf("Delete(missing) error = %v", err)
			}
			keys, _ = b.List(ctx, "events/")
			if len(keys) != 1 {
				t.Errorf("List() after delete = %v", keys)
			}
			if b.String() == "" {
				t.Error("String() is empty")
			}
		})
	}
}

func TestLocal_CreatesDirectoriesAndStaysInRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "data")
	l, err := NewLocal(root)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := l.Append(ctx, "../../escape/events/1.jsonl", []byte("x\n")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "escape", "events", "1.jsonl")); err != nil {
		t.Errorf("key was not confined to the root: %v", err)
	}
}

func TestLocal_ListMissingRoot(t *testing.T) {
	l, _ := NewLocal(filepath.Join(t.TempDir(), "never-created"))
	keys, err := l.List(context.Background(), "events/")
	if err != nil || len(keys) != 0 {
		t.Errorf("List() = %v, %v; want empty, nil", keys, err)
	}
}

func TestOpen_Targets(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		target  string
		want    string
		wantErr bool
	}{
		{target: dir, want: "*storage.Local"},
		{target: "file://" + dir, want: "*storage.Local"},
		{target: "mem://", want: "*storage.Bucket"},
		{target: "sqlite://" + filepath.Join(dir, "capture.db"), want: "*storage.SQLite"},
		{target: "ftp://example.com/x", wantErr: true},
		{target: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			b, err := Open(ctx, tt.target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open(%q) error = %v, wantErr %v", tt.target, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer b.Close()
			if got := reflect.TypeOf(b).String(); got != tt.want {
				t.Errorf("Open(%q) = %s, want %s", tt.target, got, tt.want)
			}
		})
	}
}

func TestCleanKey(t *testing.T) {
	tests := map[string]string{
		"events/1.jsonl":    "events/1.jsonl",
		"/events//1.jsonl":  "events/1.jsonl",
		"../_registry.json": "_registry.json",
		`events\1.jsonl`:    "events/1.jsonl",
	}
	for in, want := range tests {
		if got, err := cleanKey(in); err != nil || got != want {
			t.Errorf("cleanKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := cleanKey(".."); err == nil {
		t.Error("cleanKey(..) should fail")
	}
}
