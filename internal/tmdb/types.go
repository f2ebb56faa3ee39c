package tmdb

// Details is the canonical metadata of one movie or series. Movie and tv
// payloads share a struct; the title field differs per type.
type Details struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	Name             string  `json:"name"`
	Overview         string  `json:"overview"`
	ReleaseDate      string  `json:"release_date"`
	FirstAirDate     string  `json:"first_air_date"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Popularity       float64 `json:"popularity"`
	Runtime          int     `json:"runtime"`
	EpisodeRunTime   []int   `json:"episode_run_time"`
	NumberOfSeasons  int     `json:"number_of_seasons"`
	NumberOfEpisodes int     `json:"number_of_episodes"`
	IMDBID           string  `json:"imdb_id"`
	Genres           []genre `json:"genres"`
}

type genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// DisplayName returns the movie title or series name.
func (d *Details) DisplayName() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// Date returns the release date or first air date.
func (d *Details) Date() string {
	if d.ReleaseDate != "" {
		return d.ReleaseDate
	}
	return d.FirstAirDate
}

// GenreNames flattens the genre list.
func (d *Details) GenreNames() []string {
	names := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		names = append(names, g.Name)
	}
	return names
}

// Season is one season's episode list.
type Season struct {
	SeasonNumber int           `json:"season_number"`
	Episodes     []SeasonEntry `json:"episodes"`
}

type SeasonEntry struct {
	EpisodeNumber int    `json:"episode_number"`
	SeasonNumber  int    `json:"season_number"`
	AirDate       string `json:"air_date"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
	StillPath     string `json:"still_path"`
}

type searchResult struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Popularity   float64 `json:"popularity"`
}

func (r *searchResult) displayName() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

func (r *searchResult) year() int {
	date := r.ReleaseDate
	if date == "" {
		date = r.FirstAirDate
	}
	if len(date) < 4 {
		return 0
	}
	y := 0
	for _, c := range date[:4] {
		if c < '0' || c > '9' {
			return 0
		}
		y = y*10 + int(c-'0')
	}
	return y
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type findResponse struct {
	MovieResults []searchResult `json:"movie_results"`
	TVResults    []searchResult `json:"tv_results"`
}

// Configuration carries the image host settings used to build poster URLs.
type Configuration struct {
	ImageBaseURL string
	PosterSize   string
}

type configurationResponse struct {
	Images struct {
		SecureBaseURL string   `json:"secure_base_url"`
		PosterSizes   []string `json:"poster_sizes"`
	} `json:"images"`
}
