package dat

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sdalu/distillery/internal/rom"
)

// logiqxDTD is the internal DTD identifier that marks the Logiqx dialect.
const logiqxDTD = "-//Logiqx//DTD ROM Management Datafile//EN"

type logiqxHeader struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Version     string `xml:"version"`
	Date        string `xml:"date"`
	Author      string `xml:"author"`
	URL         string `xml:"url"`
}

type logiqxRelease struct {
	Name   string `xml:"name,attr"`
	Region string `xml:"region,attr"`
}

type logiqxROM struct {
	Name string `xml:"name,attr"`
	Size string `xml:"size,attr"`
	CRC  string `xml:"crc,attr"`
	MD5  string `xml:"md5,attr"`
	SHA1 string `xml:"sha1,attr"`
}

type logiqxGame struct {
	Name     string          `xml:"name,attr"`
	CloneOf  string          `xml:"cloneof,attr"`
	Releases []logiqxRelease `xml:"release"`
	ROMs     []logiqxROM     `xml:"rom"`
}

// parseLogiqx decodes the Logiqx XML dialect. It answers errFormat when
// the input does not carry the Logiqx DTD identifier, so the dispatcher
// can try the next dialect.
func parseLogiqx(r io.Reader) (*File, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false

	// The dialect is recognized by its internal DTD id, which appears
	// before the root element.
	sawDTD := false
	var file *File

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if !sawDTD {
				return nil, errFormat
			}
			return nil, fmt.Errorf("%w: %v", ErrContent, err)
		}

		switch elem := tok.(type) {
		case xml.Directive:
			if strings.Contains(string(elem), logiqxDTD) {
				sawDTD = true
			}
		case xml.StartElement:
			if !sawDTD {
				return nil, errFormat
			}
			switch elem.Name.Local {
			case "datafile":
				file = newFile(Meta{})
			case "header":
				var h logiqxHeader
				if err := dec.DecodeElement(&h, &elem); err != nil {
					return nil, fmt.Errorf("%w: header: %v", ErrContent, err)
				}
				if file == nil {
					return nil, fmt.Errorf("%w: header outside datafile", ErrContent)
				}
				file.Meta = Meta{
					Name:        h.Name,
					Description: h.Description,
					Version:     h.Version,
					Date:        h.Date,
					Author:      h.Author,
					URL:         h.URL,
				}
			case "game":
				var g logiqxGame
				if err := dec.DecodeElement(&g, &elem); err != nil {
					return nil, fmt.Errorf("%w: game: %v", ErrContent, err)
				}
				if file == nil {
					return nil, fmt.Errorf("%w: game outside datafile", ErrContent)
				}
				game, err := g.toGame()
				if err != nil {
					return nil, err
				}
				if err := file.addGame(game); err != nil {
					return nil, err
				}
			}
		}
	}

	if file == nil {
		return nil, errFormat
	}
	return file, nil
}

func (g *logiqxGame) toGame() (*Game, error) {
	game := &Game{Name: g.Name, CloneOf: g.CloneOf}
	for _, rel := range g.Releases {
		game.Releases = append(game.Releases, Release{Name: rel.Name, Region: rel.Region})
	}
	for _, xr := range g.ROMs {
		size := rom.SizeUnknown
		if xr.Size != "" {
			n, err := strconv.ParseInt(xr.Size, 10, 64)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: game %q rom %q: bad size %q", ErrContent, g.Name, xr.Name, xr.Size)
			}
			size = n
		}
		r, err := newCatalogROM(xr.Name, size, xr.CRC, xr.MD5, xr.SHA1)
		if err != nil {
			return nil, err
		}
		game.ROMs = append(game.ROMs, r)
	}
	return game, nil
}
