package archive

import (
	"errors"
	"io"
	"runtime"
	"testing"
)

func TestSubstTokens(t *testing.T) {
	args := subst(
		[]string{"x", "-so", "$(infile)", "$(entry)", "$(new_entry)"},
		map[string]string{"infile": "a.zip", "entry": "b.bin", "new_entry": "c.bin"},
	)
	want := []string{"x", "-so", "a.zip", "b.bin", "c.bin"}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestSubstZipModifier(t *testing.T) {
	args := subst(
		[]string{"$(entry:zip)"},
		map[string]string{"entry": `dir[1]\x.bin`},
	)
	if args[0] != `dir\[1\]\\x.bin` {
		t.Errorf("escaped = %q", args[0])
	}
}

func TestZipEscape(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain.bin", "plain.bin"},
		{"a[b].bin", `a\[b\].bin`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := zipEscape(tt.in); got != tt.want {
			t.Errorf("zipEscape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewExternalProviderValidation(t *testing.T) {
	// List and read are mandatory.
	_, err := NewExternalProvider(ToolSpec{Name: "x"})
	if err == nil {
		t.Error("expected error without list/read")
	}

	// The parser needs an entry capture.
	_, err = NewExternalProvider(ToolSpec{
		Name: "x",
		List: &ListSpec{CommandSpec: CommandSpec{Cmd: "x"}, Parser: `^(?P<name>.+)$`},
		Read: &CommandSpec{Cmd: "x"},
	})
	if err == nil {
		t.Error("expected error without entry capture")
	}

	p, err := NewExternalProvider(ToolSpec{
		Name:       "x",
		Extensions: []string{".x"},
		List:       &ListSpec{CommandSpec: CommandSpec{Cmd: "x"}, Parser: `^(?P<entry>.+)$`},
		Read:       &CommandSpec{Cmd: "x"},
	})
	if err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
	if p.WriteEnabled() {
		t.Error("provider without write command must be read-only")
	}
}

func TestExternalListParsing(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell environment")
	}

	// Use printf as a stand-in list tool: two file rows and a directory
	// row the validator must drop.
	p, err := NewExternalProvider(ToolSpec{
		Name:       "printf",
		Extensions: []string{".x"},
		List: &ListSpec{
			CommandSpec: CommandSpec{
				Cmd:  "printf",
				Args: []string{`F a.bin\nD subdir\nF b.bin\n`},
			},
			Parser:    `^(?P<type>\S+)\s+(?P<entry>.+)$`,
			Validator: map[string]string{"type": `^F$`},
		},
		Read: &CommandSpec{Cmd: "cat", Args: []string{"$(infile)"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := p.List("ignored.x")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0] != "a.bin" || entries[1] != "b.bin" {
		t.Errorf("entries = %v", entries)
	}
}

func TestExternalReadPipesStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell environment")
	}

	p, err := NewExternalProvider(ToolSpec{
		Name:       "echo",
		Extensions: []string{".x"},
		List: &ListSpec{
			CommandSpec: CommandSpec{Cmd: "true"},
			Parser:      `^(?P<entry>.+)$`,
		},
		Read: &CommandSpec{Cmd: "echo", Args: []string{"-n", "$(entry)"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	r, err := p.Open("ignored.x", "payload")
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(r)
	if cerr := r.Close(); cerr != nil {
		t.Fatalf("close: %v", cerr)
	}
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("read %q", data)
	}
}

func TestExternalExecError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell environment")
	}

	p, err := NewExternalProvider(ToolSpec{
		Name:       "false",
		Extensions: []string{".x"},
		List: &ListSpec{
			CommandSpec: CommandSpec{Cmd: "false"},
			Parser:      `^(?P<entry>.+)$`,
		},
		Read: &CommandSpec{Cmd: "false"},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.List("ignored.x")
	if err == nil {
		t.Fatal("expected exec error")
	}
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Errorf("err = %T, want *ExecError", err)
	}
}
