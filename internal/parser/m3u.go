package parser

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/logger"
)

// M3UEntry represents a parsed M3U playlist entry
type M3UEntry struct {
	TvgID      string
	TvgName    string
	TvgLogo    string
	GroupTitle string
	Title      string
	URL        string
}

// ItemID returns the provider's identifier for the entry: the tvg-id tag, or
// the final URL path segment without extension when the tag is absent
func (e *M3UEntry) ItemID() string {
	if e.TvgID != "" {
		return e.TvgID
	}
	base := path.Base(e.URL)
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	return base
}

// Serialize renders the entry back to its EXTINF + URL form
func (e *M3UEntry) Serialize() string {
	return fmt.Sprintf("#EXTINF:-1 tvg-id=%q tvg-name=%q group-title=%q,%s\n%s",
		e.TvgID, e.TvgName, e.GroupTitle, e.Title, e.URL)
}

// ParseStats tracks parsing statistics
type ParseStats struct {
	ParsedEntries    int
	MalformedEntries int
	TotalLines       int
	Duration         time.Duration
	ErrorsByType     map[string]int
}

// M3UParser handles M3U8 playlist parsing
type M3UParser struct {
	logger *logger.Logger
	stats  ParseStats
}

// NewM3UParser creates a new parser instance
func NewM3UParser() *M3UParser {
	return &M3UParser{
		logger: logger.AppLogger(),
		stats: ParseStats{
			ErrorsByType: make(map[string]int),
		},
	}
}

// Stats returns the statistics of the last Parse call
func (p *M3UParser) Stats() ParseStats {
	return p.stats
}

// Parse reads an M3U8 playlist. Malformed entries are counted and skipped;
// the only fatal condition is a read failure.
func (p *M3UParser) Parse(r io.Reader) ([]M3UEntry, error) {
	startTime := time.Now()
	p.stats = ParseStats{ErrorsByType: make(map[string]int)}

	var entries []M3UEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNumber := 0
	hasHeader := false
	var current *M3UEntry

	for scanner.Scan() {
		lineNumber++
		p.stats.TotalLines++
		line := strings.TrimSpace(scanner.Text())

		if lineNumber == 1 && strings.HasPrefix(line, "#EXTM3U") {
			hasHeader = true
			continue
		}

		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#EXTINF") {
			if current != nil {
				p.stats.MalformedEntries++
				p.stats.ErrorsByType["missing_url"]++
			}
			current = p.parseExtinf(line)
			continue
		}

		if strings.HasPrefix(line, "#") {
			continue
		}

		// URL line
		if current == nil {
			p.stats.MalformedEntries++
			p.stats.ErrorsByType["orphan_url"]++
			continue
		}

		current.URL = line
		if current.TvgName == "" && current.Title == "" {
			p.stats.MalformedEntries++
			p.stats.ErrorsByType["missing_name"]++
			current = nil
			continue
		}

		entries = append(entries, *current)
		p.stats.ParsedEntries++
		current = nil
	}

	if current != nil {
		p.stats.MalformedEntries++
		p.stats.ErrorsByType["missing_url"]++
	}

	if err := scanner.Err(); err != nil {
		return nil, apperrors.UpstreamFormatError("error reading playlist", err)
	}

	if !hasHeader {
		p.stats.ErrorsByType["missing_header"]++
		p.logger.Warn("M3U8 payload missing #EXTM3U header")
	}

	p.stats.Duration = time.Since(startTime)

	return entries, nil
}

var extinfAttrs = []struct {
	name   string
	assign func(*M3UEntry, string)
}{
	{"tvg-id", func(e *M3UEntry, v string) { e.TvgID = v }},
	{"tvg-name", func(e *M3UEntry, v string) { e.TvgName = v }},
	{"tvg-logo", func(e *M3UEntry, v string) { e.TvgLogo = v }},
	{"group-title", func(e *M3UEntry, v string) { e.GroupTitle = v }},
}

// parseExtinf extracts the tag attributes and display title of one EXTINF line
func (p *M3UParser) parseExtinf(line string) *M3UEntry {
	entry := &M3UEntry{}

	for _, attr := range extinfAttrs {
		marker := attr.name + `="`
		start := strings.Index(line, marker)
		if start == -1 {
			continue
		}
		rest := line[start+len(marker):]
		end := strings.Index(rest, `"`)
		if end == -1 {
			continue
		}
		attr.assign(entry, rest[:end])
	}

	if commaIdx := strings.LastIndex(line, ","); commaIdx != -1 {
		entry.Title = strings.TrimSpace(line[commaIdx+1:])
	}
	if entry.TvgName == "" && entry.Title != "" {
		entry.TvgName = entry.Title
	}

	return entry
}
