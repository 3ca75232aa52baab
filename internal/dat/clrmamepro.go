package dat

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sdalu/distillery/internal/rom"
)

// ClrMamePro dialect: a whitespace-separated token stream of barewords,
// quoted strings and grouping parens, e.g.
//
//	clrmamepro ( name "Console" version 20210714 )
//	game ( name "Title" rom ( name title.bin size 4 crc 01020304 ) )

type cmpToken struct {
	text  string
	paren byte // '(' or ')' for grouping tokens, 0 for words
}

type cmpLexer struct {
	r   *bufio.Reader
	tok *cmpToken // one-token lookahead
}

func newCmpLexer(r io.Reader) *cmpLexer {
	return &cmpLexer{r: bufio.NewReader(r)}
}

// next returns the following token, nil at end of input.
func (l *cmpLexer) next() (*cmpToken, error) {
	if l.tok != nil {
		t := l.tok
		l.tok = nil
		return t, nil
	}
	return l.lex()
}

// peek returns the following token without consuming it.
func (l *cmpLexer) peek() (*cmpToken, error) {
	if l.tok == nil {
		t, err := l.lex()
		if err != nil {
			return nil, err
		}
		l.tok = t
	}
	return l.tok, nil
}

func (l *cmpLexer) lex() (*cmpToken, error) {
	// Skip whitespace.
	var c byte
	for {
		b, err := l.r.ReadByte()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if b != ' ' && b != '\t' && b != '\r' && b != '\n' {
			c = b
			break
		}
	}

	switch c {
	case '(', ')':
		return &cmpToken{paren: c}, nil
	case '"':
		var sb strings.Builder
		for {
			b, err := l.r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("%w: unterminated string", ErrContent)
			}
			if b == '\\' {
				nb, err := l.r.ReadByte()
				if err != nil {
					return nil, fmt.Errorf("%w: unterminated string", ErrContent)
				}
				if nb != '"' {
					sb.WriteByte(b)
				}
				sb.WriteByte(nb)
				continue
			}
			if b == '"' {
				return &cmpToken{text: sb.String()}, nil
			}
			sb.WriteByte(b)
		}
	default:
		var sb strings.Builder
		sb.WriteByte(c)
		for {
			b, err := l.r.ReadByte()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			if b == ' ' || b == '\t' || b == '\r' || b == '\n' {
				break
			}
			if b == '(' || b == ')' {
				l.r.UnreadByte()
				break
			}
			sb.WriteByte(b)
		}
		return &cmpToken{text: sb.String()}, nil
	}
}

// parseClrMamePro decodes the ClrMamePro dialect. The single mandatory
// clrmamepro(...) group is the dialect marker: without one the input is
// not this format.
func parseClrMamePro(r io.Reader) (*File, error) {
	lex := newCmpLexer(r)

	var meta *Meta
	var games []*Game

	for {
		tok, err := lex.next()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			break
		}
		if tok.paren != 0 {
			return nil, fmt.Errorf("%w: unexpected %q at top level", ErrContent, string(tok.paren))
		}

		group, err := lexGroup(lex)
		if err != nil {
			return nil, err
		}

		switch tok.text {
		case "clrmamepro":
			if meta != nil {
				return nil, fmt.Errorf("%w: repeated clrmamepro header", ErrContent)
			}
			m := metaFromGroup(group)
			meta = &m
		case "game", "resource":
			g, err := gameFromGroup(group)
			if err != nil {
				return nil, err
			}
			games = append(games, g)
		default:
			// Unknown top-level groups are tolerated.
		}
	}

	if meta == nil {
		return nil, errFormat
	}

	file := newFile(*meta)
	for _, g := range games {
		if err := file.addGame(g); err != nil {
			return nil, err
		}
	}
	return file, nil
}

// cmpGroup is the parsed body of one parenthesized group: scalar values
// and nested groups, keyed in order of appearance.
type cmpGroup struct {
	scalars map[string][]string
	groups  map[string][]*cmpGroup
}

// lexGroup consumes a '(' ... ')' body.
func lexGroup(lex *cmpLexer) (*cmpGroup, error) {
	open, err := lex.next()
	if err != nil {
		return nil, err
	}
	if open == nil || open.paren != '(' {
		return nil, fmt.Errorf("%w: expected group", ErrContent)
	}

	g := &cmpGroup{
		scalars: make(map[string][]string),
		groups:  make(map[string][]*cmpGroup),
	}

	for {
		tok, err := lex.next()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return nil, fmt.Errorf("%w: unterminated group", ErrContent)
		}
		if tok.paren == ')' {
			return g, nil
		}
		if tok.paren == '(' {
			return nil, fmt.Errorf("%w: group without a key", ErrContent)
		}

		key := tok.text
		next, err := lex.peek()
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, fmt.Errorf("%w: dangling key %q", ErrContent, key)
		}
		if next.paren == '(' {
			sub, err := lexGroup(lex)
			if err != nil {
				return nil, err
			}
			g.groups[key] = append(g.groups[key], sub)
			continue
		}
		value, err := lex.next()
		if err != nil {
			return nil, err
		}
		if value.paren != 0 {
			return nil, fmt.Errorf("%w: key %q without a value", ErrContent, key)
		}
		g.scalars[key] = append(g.scalars[key], value.text)
	}
}

func (g *cmpGroup) scalar(key string) string {
	values := g.scalars[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func metaFromGroup(g *cmpGroup) Meta {
	return Meta{
		Name:        g.scalar("name"),
		Description: g.scalar("description"),
		Version:     g.scalar("version"),
		Date:        g.scalar("date"),
		Author:      g.scalar("author"),
		URL:         g.scalar("url"),
	}
}

func gameFromGroup(g *cmpGroup) (*Game, error) {
	name := g.scalar("name")
	if name == "" {
		return nil, fmt.Errorf("%w: game without a name", ErrContent)
	}
	game := &Game{Name: name, CloneOf: g.scalar("cloneof")}

	for _, kind := range []string{"rom", "disk"} {
		for _, rg := range g.groups[kind] {
			r, err := romFromGroup(name, rg)
			if err != nil {
				return nil, err
			}
			game.ROMs = append(game.ROMs, r)
		}
	}
	return game, nil
}

func romFromGroup(game string, g *cmpGroup) (*rom.ROM, error) {
	name := g.scalar("name")
	if name == "" {
		return nil, fmt.Errorf("%w: game %q rom without a name", ErrContent, game)
	}

	size := rom.SizeUnknown
	if s := g.scalar("size"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: game %q rom %q: bad size %q", ErrContent, game, name, s)
		}
		size = n
	}

	return newCatalogROM(name, size, g.scalar("crc"), g.scalar("md5"), g.scalar("sha1"))
}
