// Package parser classifies generation output as a song list or plain text.
package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/capitalize-ai/playlist-assistant/internal/model"
	"github.com/capitalize-ai/playlist-assistant/internal/songlist"
)

// Kind is the classification of a parsed response.
type Kind string

const (
	KindPlaylist Kind = "playlist"
	KindText     Kind = "text"
)

const (
	// ParseFailureText replaces output that could not be decoded into a song list.
	ParseFailureText = "Sorry, I had trouble formatting the playlist. Please try again."

	// EmptyPlaylistText replaces a well-formed but empty song list.
	EmptyPlaylistText = "I couldn't find any songs for that. Try describing the mood differently."
)

// fenceRe matches code fence markers with an optional language tag.
var fenceRe = regexp.MustCompile("```[a-zA-Z]*\\n?|\\n?```")

// Result is the outcome of Parse. Songs is set for KindPlaylist, Text for KindText.
type Result struct {
	Kind  Kind
	Songs model.SongList
	Text  string
}

// Options controls parser policy.
type Options struct {
	// AllowEmpty turns an empty song array into an empty playlist instead of
	// the EmptyPlaylistText fallback.
	AllowEmpty bool
}

// Parser turns raw generation output into a Result.
type Parser struct {
	opts Options
}

// New creates a new parser.
func New(opts Options) *Parser {
	return &Parser{opts: opts}
}

// Parse classifies raw. It never fails: anything that is not a valid, non-empty
// song array degrades to a fixed fallback text.
func (p *Parser) Parse(raw string) Result {
	cleaned := Clean(raw)

	var decoded any
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return Result{Kind: KindText, Text: ParseFailureText}
	}

	songs, err := songlist.Validate(decoded)
	if err != nil {
		return Result{Kind: KindText, Text: ParseFailureText}
	}

	if len(songs) == 0 && !p.opts.AllowEmpty {
		return Result{Kind: KindText, Text: EmptyPlaylistText}
	}

	return Result{Kind: KindPlaylist, Songs: songs}
}

// Clean strips code fence markers and surrounding whitespace.
func Clean(raw string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))
}
