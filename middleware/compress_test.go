package middleware

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/broady/tsrpc/testutil"
)

func TestCompress(t *testing.T) {
	gz, err := Compress(64)
	if err != nil {
		t.Fatal(err)
	}
	h := newTestAPI(t).WithMiddleware(gz).Handler()
	long := strings.Repeat("a", 512)

	t.Run("large response", func(t *testing.T) {
		w := testutil.Call("echo", long).WithHeader("Accept-Encoding", "gzip").Serve(h)
		testutil.AssertHeader(t, w, "Content-Encoding", "gzip")

		zr, err := gzip.NewReader(w.Body)
		if err != nil {
			t.Fatal(err)
		}
		var got string
		if err := json.NewDecoder(zr).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if got != long {
			t.Errorf("decompressed body has %d bytes, want %d", len(got), len(long))
		}
	})

	t.Run("small response", func(t *testing.T) {
		w := testutil.Call("echo", "hi").WithHeader("Accept-Encoding", "gzip").Serve(h)
		if enc := w.Header().Get("Content-Encoding"); enc != "" {
			t.Errorf("Content-Encoding = %q, want none", enc)
		}
	})

	t.Run("client without gzip", func(t *testing.T) {
		w := testutil.Call("echo", long).Serve(h)
		if enc := w.Header().Get("Content-Encoding"); enc != "" {
			t.Errorf("Content-Encoding = %q, want none", enc)
		}
	})
}

func TestCompress_InvalidSize(t *testing.T) {
	if _, err := Compress(-1); err == nil {
		t.Error("expected error for negative size")
	}
}
