package firewall

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPathPolicy_Containment(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(inside, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	policy := NewPathPolicy([]string{root}, nil, 100)

	tests := []struct {
		name    string
		path    string
		wantErr PolicyErrorKind
	}{
		{"file inside root", inside, 0},
		{"root itself", root, 0},
		{"new file inside root", filepath.Join(root, "new.txt"), 0},
		{"traversal escape", filepath.Join(root, "..", "..", "etc", "passwd"), ErrPathOutsideAllowlist},
		{"absolute outside", "/etc/passwd", ErrPathOutsideAllowlist},
		{"sibling prefix", root + "-evil/notes.txt", ErrPathOutsideAllowlist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Validate(tt.path)
			if tt.wantErr == 0 {
				if err != nil {
					t.Fatalf("expected %q to validate, got %v", tt.path, err)
				}
				return
			}
			var pe *PolicyError
			if !errors.As(err, &pe) {
				t.Fatalf("expected PolicyError for %q, got %v", tt.path, err)
			}
			if pe.Kind != tt.wantErr {
				t.Errorf("expected kind %d, got %d (%s)", tt.wantErr, pe.Kind, pe.Msg)
			}
		})
	}
}

func TestPathPolicy_RelativeTraversal(t *testing.T) {
	policy := NewPathPolicy([]string{"/home/user/project"}, nil, 100)

	err := policy.Validate("../../etc/passwd")
	if err == nil {
		t.Fatal("expected traversal to be rejected")
	}
	if !strings.Contains(err.Error(), "outside allowed directories") {
		t.Errorf("expected outside-class error, got: %v", err)
	}
}

func TestPathPolicy_BlockedExtension(t *testing.T) {
	root := t.TempDir()
	policy := NewPathPolicy([]string{root}, []string{".exe", ".sh", "bat"}, 100)

	blocked := []string{"run.exe", "setup.SH", "install.bat"}
	for _, name := range blocked {
		err := policy.Validate(filepath.Join(root, name))
		var pe *PolicyError
		if !errors.As(err, &pe) || pe.Kind != ErrBlockedExtension {
			t.Errorf("expected blocked extension error for %q, got %v", name, err)
		}
	}

	if err := policy.Validate(filepath.Join(root, "doc.txt")); err != nil {
		t.Errorf("expected .txt to pass, got %v", err)
	}
}

func TestPathPolicy_FileTooLarge(t *testing.T) {
	root := t.TempDir()
	big := filepath.Join(root, "big.bin")
	if err := os.WriteFile(big, make([]byte, 2*1024*1024), 0o644); err != nil {
		t.Fatal(err)
	}

	policy := NewPathPolicy([]string{root}, nil, 1)

	err := policy.Validate(big)
	var pe *PolicyError
	if !errors.As(err, &pe) || pe.Kind != ErrFileTooLarge {
		t.Fatalf("expected file-too-large error, got %v", err)
	}
	if !strings.Contains(pe.Msg, "1.00MB") {
		t.Errorf("error should report the limit: %s", pe.Msg)
	}
}

func TestPathPolicy_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	target := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	policy := NewPathPolicy([]string{root}, nil, 100)

	err := policy.Validate(link)
	var pe *PolicyError
	if !errors.As(err, &pe) || pe.Kind != ErrPathOutsideAllowlist {
		t.Errorf("expected symlink escape to be rejected, got %v", err)
	}
}
