package xtream

import (
	"encoding/json"
	"strconv"
	"strings"
)

// flexString tolerates the player_api habit of sending ids as either JSON
// numbers or strings depending on the panel software.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt tolerates numeric fields delivered as strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(v)
	return nil
}

func (f flexInt) Int() int { return int(f) }

type apiCategory struct {
	CategoryID   flexString `json:"category_id"`
	CategoryName string     `json:"category_name"`
}

type apiVodStream struct {
	StreamID   flexString `json:"stream_id"`
	Name       string     `json:"name"`
	CategoryID flexString `json:"category_id"`
}

type apiSeries struct {
	SeriesID   flexString `json:"series_id"`
	Name       string     `json:"name"`
	CategoryID flexString `json:"category_id"`
}

type apiEpisode struct {
	ID         flexString `json:"id"`
	EpisodeNum flexInt    `json:"episode_num"`
	Season     flexInt    `json:"season"`
}

type apiSeriesInfo struct {
	Episodes map[string][]apiEpisode `json:"episodes"`
}

// parseSeasonKey falls back to the episodes map key when an episode row
// omits its season field.
func parseSeasonKey(key string) int {
	v, err := strconv.Atoi(key)
	if err != nil {
		return 0
	}
	return v
}
