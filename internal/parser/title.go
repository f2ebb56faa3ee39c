package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// Token lists shared by both provider protocols for cleaning raw titles.
// Resolution and codec markers carry no catalog meaning.
var (
	bracketTagRegex   = regexp.MustCompile(`\[[^\]]*\]`)
	trailingYearRegex = regexp.MustCompile(`^(.*?)[\s._-]*[(\[]((?:19|20)\d{2})[)\]]\s*$`)
	bareYearRegex     = regexp.MustCompile(`^(.*?)[\s._-]+((?:19|20)\d{2})$`)
	multiSpaceRegex   = regexp.MustCompile(`\s{2,}`)

	qualityTokens = map[string]bool{
		"4k": true, "8k": true, "uhd": true, "fhd": true, "hd": true, "sd": true,
		"2160p": true, "1080p": true, "720p": true, "480p": true,
		"hevc": true, "h264": true, "h265": true, "x264": true, "x265": true,
		"hdr": true, "dolby": true, "vision": true, "multi": true, "vostfr": true,
	}
)

// ExtractNameYear derives the clean (name, year) pair from a raw provider
// title. Bracketed tags, resolution and codec tokens are stripped; a trailing
// "(2021)", "[2021]" or bare " 2021" becomes the year. Year is nil when none
// is present.
func ExtractNameYear(raw string) (string, *int) {
	s := strings.TrimSpace(raw)

	var year *int
	if m := trailingYearRegex.FindStringSubmatch(s); len(m) == 3 {
		if y, err := strconv.Atoi(m[2]); err == nil {
			year = &y
			s = m[1]
		}
	}

	// Tags like [EN] or [VIP] anywhere in the name
	s = bracketTagRegex.ReplaceAllString(s, " ")

	// Strip quality tokens word by word
	words := strings.Fields(s)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if qualityTokens[strings.ToLower(strings.Trim(w, "-|"))] {
			continue
		}
		kept = append(kept, w)
	}
	s = strings.Join(kept, " ")

	// A bare trailing year is only taken once the tags are gone
	if year == nil {
		if m := bareYearRegex.FindStringSubmatch(s); len(m) == 3 {
			if y, err := strconv.Atoi(m[2]); err == nil {
				year = &y
				s = m[1]
			}
		}
	}

	s = strings.Trim(s, " -_.")
	s = multiSpaceRegex.ReplaceAllString(s, " ")

	return s, year
}
