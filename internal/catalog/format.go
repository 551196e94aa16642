package catalog

import (
	"strings"
	"time"

	"github.com/tbourn/go-game-watchlist/internal/utils"
)

// GameSummary is the API shape of a catalog game in search listings.
type GameSummary struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Summary       *string  `json:"summary,omitempty"`
	CoverURL      string   `json:"cover_url"`
	Screenshots   []string `json:"screenshots"`
	Videos        []string `json:"videos"`
	Genres        []string `json:"genres"`
	CriticScore   *float64 `json:"critic_score"`
	Developer     *string  `json:"developer"`
	Publisher     *string  `json:"publisher"`
	SystemAverage *float64 `json:"system_average"`
}

// Summarize formats r for listings. SystemAverage is left for the caller.
func Summarize(r Record) GameSummary {
	s := GameSummary{
		ID:          r.ID,
		Name:        r.Name,
		Screenshots: []string{},
		Videos:      []string{},
		Genres:      []string{},
		CriticScore: CriticScore(r.AggregatedRating, 2),
	}
	if r.Summary != "" {
		summary := r.Summary
		s.Summary = &summary
	}
	if r.Cover != nil {
		s.CoverURL = CoverURL(r.Cover.URL)
	}

	// Artworks win over screenshots; video thumbnails are the last resort.
	for _, img := range r.Artworks {
		if img.URL != "" {
			s.Screenshots = append(s.Screenshots, ScreenshotURL(img.URL))
		}
	}
	if len(s.Screenshots) == 0 {
		for _, img := range r.Screenshots {
			if img.URL != "" {
				s.Screenshots = append(s.Screenshots, ScreenshotURL(img.URL))
			}
		}
	}
	for _, v := range r.Videos {
		if v.VideoID == "" {
			continue
		}
		s.Videos = append(s.Videos, "https://www.youtube.com/watch?v="+v.VideoID)
		if len(s.Screenshots) == 0 {
			s.Screenshots = append(s.Screenshots, "https://img.youtube.com/vi/"+v.VideoID+"/hqdefault.jpg")
		}
	}

	for _, g := range r.Genres {
		if g.Name != "" {
			s.Genres = append(s.Genres, g.Name)
		}
	}

	var devs, pubs []string
	for _, ic := range r.InvolvedCompanies {
		if ic.Company.Name == "" {
			continue
		}
		if ic.Developer {
			devs = append(devs, ic.Company.Name)
		}
		if ic.Publisher {
			pubs = append(pubs, ic.Company.Name)
		}
	}
	s.Developer = joinNames(devs)
	s.Publisher = joinNames(pubs)
	return s
}

func joinNames(names []string) *string {
	if len(names) == 0 {
		return nil
	}
	j := strings.Join(names, ", ")
	return &j
}

// CoverURL turns a protocol-relative thumbnail URL into the large cover URL.
func CoverURL(raw string) string {
	if raw == "" {
		return ""
	}
	return absolute(strings.Replace(raw, "t_thumb", "t_cover_big", 1))
}

// ScreenshotURL turns a protocol-relative thumbnail URL into the medium
// screenshot URL.
func ScreenshotURL(raw string) string {
	return absolute(strings.Replace(raw, "t_thumb", "t_screenshot_med", 1))
}

func absolute(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

// CriticScore converts the catalog's 0-100 aggregated rating to the 0-10
// scale rounded to decimals places. Missing or non-positive ratings yield nil.
func CriticScore(aggregated *float64, decimals int) *float64 {
	if aggregated == nil || *aggregated <= 0 {
		return nil
	}
	v := utils.Round(*aggregated/10, decimals)
	return &v
}

// ReleaseTime converts a unix timestamp to UTC time, or nil when absent.
func ReleaseTime(ts *int64) *time.Time {
	if ts == nil {
		return nil
	}
	t := time.Unix(*ts, 0).UTC()
	return &t
}

type origin struct {
	country string
	market  string
}

// countries maps ISO 3166-1 numeric codes to a display country and market.
var countries = map[int]origin{
	840: {"Estados Unidos", "EUA"},
	392: {"Japão", "Asia"},
	156: {"China", "Asia"},
	410: {"Coreia do Sul", "Asia"},
	826: {"Reino Unido", "Europa"},
	250: {"França", "Europa"},
	276: {"Alemanha", "Europa"},
	124: {"Canadá", "America do Norte"},
	752: {"Suécia", "Europa"},
	616: {"Polônia", "Europa"},
	76:  {"Brasil", "América do Sul"},
}

// ResolveCountry maps a catalog country code to (country, market). An absent
// code has no country; an unmapped one is "Desconhecido". Both fall back to
// the "Global" market.
func ResolveCountry(code *int) (*string, string) {
	if code == nil || *code == 0 {
		return nil, "Global"
	}
	o, ok := countries[*code]
	if !ok {
		unknown := "Desconhecido"
		return &unknown, "Global"
	}
	country := o.country
	return &country, o.market
}
