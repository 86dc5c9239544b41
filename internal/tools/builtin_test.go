package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCalculatorTool(t *testing.T) {
	calc := NewCalculatorTool()
	ctx := context.Background()

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"addition", "2 + 2", "4"},
		{"precedence", "2 + 3 * 4", "14"},
		{"parentheses", "(2 + 3) * 4", "20"},
		{"division", "10 / 4", "2.5"},
		{"negative", "-5 + 2", "-3"},
		{"power", "2 ** 10", "1024"},
		{"chained power", "2 ** 3 ** 2", "512"},
		{"power of group", "(1 + 1) ** 3", "8"},
		{"power binds tighter than multiply", "3 * 2 ** 4", "48"},
		{"negated power", "-2 ** 2", "-4"},
		{"fractional exponent", "9 ** 0.5", "3"},
		{"modulo", "17 % 5", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := calc.Execute(ctx, map[string]any{"expression": tt.expr})
			if !res.Success {
				t.Fatalf("expected success, got %q", res.Error)
			}
			if res.Result != tt.want {
				t.Errorf("%s = %v, want %s", tt.expr, res.Result, tt.want)
			}
		})
	}
}

func TestCalculatorTool_Precision(t *testing.T) {
	calc := NewCalculatorTool()

	res := calc.Execute(context.Background(), map[string]any{
		"expression": "10 / 3",
		"precision":  3,
	})
	if !res.Success {
		t.Fatal(res.Error)
	}
	if res.Result != "3.333" {
		t.Errorf("got %v, want 3.333", res.Result)
	}
}

func TestCalculatorTool_Invalid(t *testing.T) {
	calc := NewCalculatorTool()
	ctx := context.Background()

	invalid := []string{
		"2 +",
		"hello world",
		"'a' + 'b' +",
	}
	for _, expr := range invalid {
		res := calc.Execute(ctx, map[string]any{"expression": expr})
		if res.Success {
			t.Errorf("expected %q to fail", expr)
		}
	}

	// A valid expression that is not numeric fails too.
	res := calc.Execute(ctx, map[string]any{"expression": `"abc"`})
	if res.Success {
		t.Error("expected non-numeric result to fail")
	}
}

func TestWordCountTool(t *testing.T) {
	wc := NewWordCountTool()

	res := wc.Execute(context.Background(), map[string]any{
		"text": "Hello world. This is fine!\nSecond line?",
	})
	if !res.Success {
		t.Fatal(res.Error)
	}

	counts := res.Result.(map[string]any)
	if counts["words"] != 7 {
		t.Errorf("words = %v, want 7", counts["words"])
	}
	if counts["lines"] != 2 {
		t.Errorf("lines = %v, want 2", counts["lines"])
	}
	if counts["sentences"] != 3 {
		t.Errorf("sentences = %v, want 3", counts["sentences"])
	}
}

func TestReadWriteFileTools(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "note.txt")
	ctx := context.Background()

	w := NewWriteFileTool()
	res := w.Execute(ctx, map[string]any{
		"file_path": path,
		"content":   "hello from the agent",
	})
	if !res.Success {
		t.Fatal(res.Error)
	}

	r := NewReadFileTool()
	res = r.Execute(ctx, map[string]any{"file_path": path})
	if !res.Success {
		t.Fatal(res.Error)
	}
	if res.Result != "hello from the agent" {
		t.Errorf("round trip mismatch: %v", res.Result)
	}
}

func TestReadFileTool_Missing(t *testing.T) {
	r := NewReadFileTool()
	res := r.Execute(context.Background(), map[string]any{
		"file_path": filepath.Join(t.TempDir(), "absent.txt"),
	})
	if res.Success {
		t.Fatal("expected missing file to fail")
	}
}

func TestReadFileTool_Binary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x01}, 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewReadFileTool()
	res := r.Execute(context.Background(), map[string]any{"file_path": path})
	if res.Success {
		t.Fatal("expected binary file to be rejected")
	}
}

func TestHTTPGetTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("response body"))
	}))
	defer srv.Close()

	tool := NewHTTPGetTool(nil, 5*time.Second)
	res := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	if !res.Success {
		t.Fatal(res.Error)
	}
	if res.Result != "response body" {
		t.Errorf("unexpected body: %v", res.Result)
	}
	if res.Metadata["status_code"] != http.StatusOK {
		t.Errorf("unexpected status: %v", res.Metadata["status_code"])
	}
}

func TestHTTPGetTool_HostAllowlist(t *testing.T) {
	tool := NewHTTPGetTool([]string{"api.example.com", "*.trusted.org"}, time.Second)

	tests := []struct {
		url     string
		allowed bool
	}{
		{"https://api.example.com/v1", true},
		{"https://docs.trusted.org/page", true},
		{"https://trusted.org/page", true},
		{"https://evil.com/", false},
		{"https://api.example.com.evil.com/", false},
		{"ftp://api.example.com/", false},
	}

	for _, tt := range tests {
		_, err := tool.validateURL(tt.url)
		if tt.allowed && err != nil {
			t.Errorf("expected %q to be allowed: %v", tt.url, err)
		}
		if !tt.allowed && err == nil {
			t.Errorf("expected %q to be rejected", tt.url)
		}
	}

	if tool.ValidateInput(map[string]any{"url": "https://evil.com/"}) {
		t.Error("ValidateInput should reject non-allowlisted hosts")
	}
}

func TestHTTPGetTool_ResponseCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	tool := NewHTTPGetTool(nil, 5*time.Second)
	tool.maxBytes = 1024

	res := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	if !res.Success {
		t.Fatal(res.Error)
	}
	if got := len(res.Result.(string)); got > 1024 {
		t.Errorf("response not capped: %d bytes", got)
	}
}
