package archive

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// CommandSpec is one external tool invocation template. Argument tokens
// $(infile), $(entry) and $(new_entry) are substituted per call; the
// ":zip" modifier (e.g. "$(entry:zip)") escapes the glob characters zip
// tools would otherwise expand.
type CommandSpec struct {
	Cmd  string
	Args []string
}

// ListSpec extends CommandSpec with output parsing: Parser is a regexp
// with a named capture "entry" (and optionally others); Validator maps
// capture names to regexps a row must match to be kept, which is how
// directory rows are filtered out.
type ListSpec struct {
	CommandSpec
	Parser    string
	Validator map[string]string
}

// ToolSpec declares a complete external archiver: which files it claims
// and the command templates for each operation. List and Read are
// mandatory; a missing Write degrades the provider to read-only; missing
// Delete and Rename fall back to emulation.
type ToolSpec struct {
	Name       string
	Extensions []string
	MimeTypes  []string
	Timeout    time.Duration

	List   *ListSpec
	Read   *CommandSpec
	Write  *CommandSpec
	Delete *CommandSpec
	Rename *CommandSpec
}

// ExternalProvider drives a command-line archiver described by a ToolSpec.
// Tools are invoked with explicit argv arrays; stdout/stdin are piped for
// read/write, and a non-zero exit surfaces as an ExecError carrying the
// captured stderr.
type ExternalProvider struct {
	spec      ToolSpec
	parser    *regexp.Regexp
	validator map[string]*regexp.Regexp
}

// NewExternalProvider validates the spec and compiles its list parser.
func NewExternalProvider(spec ToolSpec) (*ExternalProvider, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("external archiver requires a name")
	}
	if spec.List == nil || spec.Read == nil {
		return nil, fmt.Errorf("external archiver %q requires list and read commands", spec.Name)
	}
	parser, err := regexp.Compile(spec.List.Parser)
	if err != nil {
		return nil, fmt.Errorf("list parser for %q: %w", spec.Name, err)
	}
	entryIdx := parser.SubexpIndex("entry")
	if entryIdx < 0 {
		return nil, fmt.Errorf("list parser for %q lacks an 'entry' capture", spec.Name)
	}
	validator := make(map[string]*regexp.Regexp, len(spec.List.Validator))
	for name, pattern := range spec.List.Validator {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("list validator %q for %q: %w", name, spec.Name, err)
		}
		validator[name] = re
	}
	return &ExternalProvider{spec: spec, parser: parser, validator: validator}, nil
}

func (p *ExternalProvider) Name() string         { return p.spec.Name }
func (p *ExternalProvider) Extensions() []string { return p.spec.Extensions }
func (p *ExternalProvider) MimeTypes() []string  { return p.spec.MimeTypes }
func (p *ExternalProvider) WriteEnabled() bool   { return p.spec.Write != nil }

// subst expands the argument template for one invocation.
func subst(args []string, vars map[string]string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		for name, value := range vars {
			a = strings.ReplaceAll(a, "$("+name+")", value)
			a = strings.ReplaceAll(a, "$("+name+":zip)", zipEscape(value))
		}
		out = append(out, a)
	}
	return out
}

// zipEscape protects the characters zip tools treat as glob syntax.
func zipEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '[', ']':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (p *ExternalProvider) command(spec *CommandSpec, vars map[string]string) *exec.Cmd {
	args := subst(spec.Args, vars)
	if p.spec.Timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), p.spec.Timeout)
		cmd := exec.CommandContext(ctx, spec.Cmd, args...)
		cmd.Cancel = func() error {
			defer cancel()
			return cmd.Process.Kill()
		}
		return cmd
	}
	return exec.Command(spec.Cmd, args...)
}

func (p *ExternalProvider) run(spec *CommandSpec, vars map[string]string) ([]byte, error) {
	cmd := p.command(spec, vars)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &ExecError{Cmd: spec.Cmd, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return stdout.Bytes(), nil
}

func (p *ExternalProvider) List(file string) ([]string, error) {
	out, err := p.run(&p.spec.List.CommandSpec, map[string]string{"infile": file})
	if err != nil {
		return nil, err
	}

	var entries []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		m := p.parser.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		if !p.rowValid(m) {
			continue
		}
		entries = append(entries, m[p.parser.SubexpIndex("entry")])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanning %s list output: %v", ErrProcessing, p.spec.Name, err)
	}
	return entries, nil
}

func (p *ExternalProvider) rowValid(match []string) bool {
	for name, re := range p.validator {
		idx := p.parser.SubexpIndex(name)
		if idx < 0 || idx >= len(match) {
			return false
		}
		if !re.MatchString(match[idx]) {
			return false
		}
	}
	return true
}

func (p *ExternalProvider) Open(file, entry string) (io.ReadCloser, error) {
	cmd := p.command(p.spec.Read, map[string]string{"infile": file, "entry": entry})
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("piping %s: %w", p.spec.Read.Cmd, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, &ExecError{Cmd: p.spec.Read.Cmd, Err: err}
	}
	return &toolReader{cmd: cmd, stdout: stdout, stderr: &stderr, name: p.spec.Read.Cmd}, nil
}

type toolReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	name   string
	waited bool
}

func (r *toolReader) Read(p []byte) (int, error) { return r.stdout.Read(p) }

func (r *toolReader) Close() error {
	r.stdout.Close()
	if r.waited {
		return nil
	}
	r.waited = true
	if err := r.cmd.Wait(); err != nil {
		return &ExecError{Cmd: r.name, Stderr: strings.TrimSpace(r.stderr.String()), Err: err}
	}
	return nil
}

func (p *ExternalProvider) Create(file, entry string) (io.WriteCloser, error) {
	if p.spec.Write == nil {
		return nil, fmt.Errorf("%w: write via %s", ErrNotSupported, p.spec.Name)
	}
	cmd := p.command(p.spec.Write, map[string]string{"infile": file, "entry": entry})
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("piping %s: %w", p.spec.Write.Cmd, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, &ExecError{Cmd: p.spec.Write.Cmd, Err: err}
	}
	return &toolWriter{cmd: cmd, stdin: stdin, stderr: &stderr, name: p.spec.Write.Cmd}, nil
}

type toolWriter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	name   string
}

func (w *toolWriter) Write(p []byte) (int, error) { return w.stdin.Write(p) }

func (w *toolWriter) Close() error {
	if err := w.stdin.Close(); err != nil {
		w.cmd.Wait()
		return fmt.Errorf("closing %s stdin: %w", w.name, err)
	}
	if err := w.cmd.Wait(); err != nil {
		return &ExecError{Cmd: w.name, Stderr: strings.TrimSpace(w.stderr.String()), Err: err}
	}
	return nil
}

func (p *ExternalProvider) Remove(file, entry string) error {
	if p.spec.Delete == nil {
		return fmt.Errorf("%w: delete via %s", ErrNotSupported, p.spec.Name)
	}
	_, err := p.run(p.spec.Delete, map[string]string{"infile": file, "entry": entry})
	return err
}

// RenameEntry uses the tool's native rename command; ErrNotSupported when
// none is configured so Archive falls back to copy + delete.
func (p *ExternalProvider) RenameEntry(file, from, to string) error {
	if p.spec.Rename == nil {
		return fmt.Errorf("%w: rename via %s", ErrNotSupported, p.spec.Name)
	}
	_, err := p.run(p.spec.Rename, map[string]string{"infile": file, "entry": from, "new_entry": to})
	return err
}

var _ Provider = (*ExternalProvider)(nil)
var _ EntryRenamer = (*ExternalProvider)(nil)
