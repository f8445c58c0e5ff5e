// Package tickers supplies the symbols a batch refresh retrieves.
package tickers

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnreadable means the ticker source could not be read or parsed.
var ErrUnreadable = errors.New("ticker source unreadable")

// OnlineSourceKey is the security key/value pair naming the online quote
// source KMyMoney uses for a security.
const OnlineSourceKey = "kmm-online-source"

type Source interface {
	Tickers() ([]string, error)
}

// Static is a fixed ticker list, typically from the config file.
type Static []string

func (s Static) Tickers() ([]string, error) {
	out := make([]string, len(s))
	copy(out, s)
	return out, nil
}

// KMyMoney reads the securities of a KMyMoney file whose online quote source
// is Name. The file may be gzip compressed (the default .kmy format) or
// plain XML. Duplicates are not removed.
type KMyMoney struct {
	Path string
	// Name is compared case-insensitively with each security's online source.
	Name string
}

// SourceName derives the online source name from the program path: its
// base name without extension, lower-cased.
func SourceName(program string) string {
	base := filepath.Base(program)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

type security struct {
	Symbol string `xml:"symbol,attr"`
	Pairs  []pair `xml:"KEYVALUEPAIRS>PAIR"`
}

type pair struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

func (k KMyMoney) Tickers() ([]string, error) {
	f, err := os.Open(k.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer f.Close()

	r, err := decompress(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, k.Path, err)
	}

	symbols, err := k.scan(xml.NewDecoder(r))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, k.Path, err)
	}
	return symbols, nil
}

func (k KMyMoney) scan(dec *xml.Decoder) ([]string, error) {
	var (
		symbols    []string
		securities bool
		depth      int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch {
			case depth == 0 && el.Name.Local == "SECURITIES":
				securities = true
				depth = 1
			case depth == 1 && el.Name.Local == "SECURITY":
				var sec security
				if err := dec.DecodeElement(&sec, &el); err != nil {
					return nil, err
				}
				if sec.Symbol != "" && k.matches(sec) {
					symbols = append(symbols, sec.Symbol)
				}
			case depth > 0:
				depth++
			}
		case xml.EndElement:
			if depth > 0 {
				depth--
			}
		}
	}
	if !securities {
		return nil, errors.New("no SECURITIES section")
	}
	return symbols, nil
}

func (k KMyMoney) matches(sec security) bool {
	for _, p := range sec.Pairs {
		if p.Key == OnlineSourceKey && strings.EqualFold(p.Value, k.Name) {
			return true
		}
	}
	return false
}

// decompress unwraps gzip data and passes anything else through.
func decompress(r *bufio.Reader) (io.Reader, error) {
	magic, err := r.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		return gzip.NewReader(r)
	}
	return r, nil
}
