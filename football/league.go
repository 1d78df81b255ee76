package football

import (
	"strconv"
	"strings"
	"time"
)

// Competition maps a short code used in cache keys and URLs to the API league.
type Competition struct {
	Code string `yaml:"code" json:"code"`
	ID   int    `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// DefaultLeagues are the competitions preloaded and listed by default.
var DefaultLeagues = []Competition{
	{Code: "epl", ID: 39, Name: "Premier League"},
	{Code: "laliga", ID: 140, Name: "La Liga"},
	{Code: "seriea", ID: 135, Name: "Serie A"},
	{Code: "bundesliga", ID: 78, Name: "Bundesliga"},
	{Code: "ligue1", ID: 61, Name: "Ligue 1"},
	{Code: "ucl", ID: 2, Name: "UEFA Champions League"},
}

// LookupLeague resolves a code ("epl") or a numeric API id ("39").
func LookupLeague(ref string, known []Competition) (Competition, bool) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return Competition{}, false
	}
	id, numErr := strconv.Atoi(ref)
	for _, c := range known {
		if c.Code == ref || (numErr == nil && c.ID == id) {
			return c, true
		}
	}
	if numErr == nil && id > 0 {
		return Competition{Code: "league" + ref, ID: id}, true
	}
	return Competition{}, false
}

// SeasonFor returns the season a date belongs to. European seasons start in
// July, so January 2024 is season 2023.
func SeasonFor(t time.Time) int {
	if t.Month() >= time.July {
		return t.Year()
	}
	return t.Year() - 1
}
