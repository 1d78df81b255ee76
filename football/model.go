package football

import "time"

// Fixture is one element of the /fixtures response.
type Fixture struct {
	Fixture FixtureInfo `json:"fixture"`
	League  League      `json:"league"`
	Teams   Teams       `json:"teams"`
	Goals   Goals       `json:"goals"`
	Score   Score       `json:"score"`
}

// ID is shorthand for Fixture.Fixture.ID.
func (f Fixture) ID() int { return f.Fixture.ID }

// Kickoff is the scheduled start time.
func (f Fixture) Kickoff() time.Time { return f.Fixture.Date }

// Title renders "Home vs Away".
func (f Fixture) Title() string { return f.Teams.Home.Name + " vs " + f.Teams.Away.Name }

type FixtureInfo struct {
	ID        int           `json:"id"`
	Referee   *string       `json:"referee"`
	Timezone  string        `json:"timezone"`
	Date      time.Time     `json:"date"`
	Timestamp int64         `json:"timestamp"`
	Venue     Venue         `json:"venue"`
	Status    FixtureStatus `json:"status"`
}

type FixtureStatus struct {
	Long    string `json:"long"`
	Short   string `json:"short"`
	Elapsed *int   `json:"elapsed"`
}

// Finished reports whether the match is over (full time, extra time or penalties).
func (s FixtureStatus) Finished() bool {
	switch s.Short {
	case "FT", "AET", "PEN":
		return true
	}
	return false
}

type Venue struct {
	ID       *int   `json:"id"`
	Name     string `json:"name"`
	City     string `json:"city"`
	Address  string `json:"address,omitempty"`
	Capacity int    `json:"capacity,omitempty"`
	Surface  string `json:"surface,omitempty"`
	Image    string `json:"image,omitempty"`
}

type League struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Logo    string `json:"logo"`
	Flag    string `json:"flag"`
	Season  int    `json:"season"`
	Round   string `json:"round,omitempty"`
}

type Teams struct {
	Home TeamRef `json:"home"`
	Away TeamRef `json:"away"`
}

// TeamRef is the compact team shape embedded in most responses.
type TeamRef struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Logo   string `json:"logo"`
	Winner *bool  `json:"winner,omitempty"`
}

// Goals is nil per side until the match has started.
type Goals struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

type Score struct {
	Halftime  Goals `json:"halftime"`
	Fulltime  Goals `json:"fulltime"`
	Extratime Goals `json:"extratime"`
	Penalty   Goals `json:"penalty"`
}

// Prediction is the /predictions payload for a fixture.
type Prediction struct {
	Predictions PredictionDetail `json:"predictions"`
	Comparison  map[string]Split `json:"comparison"`
	Teams       struct {
		Home TeamRef `json:"home"`
		Away TeamRef `json:"away"`
	} `json:"teams"`
}

type PredictionDetail struct {
	Winner struct {
		ID      *int   `json:"id"`
		Name    string `json:"name"`
		Comment string `json:"comment"`
	} `json:"winner"`
	WinOrDraw bool    `json:"win_or_draw"`
	UnderOver *string `json:"under_over"`
	Goals     Split   `json:"goals"`
	Advice    string  `json:"advice"`
	Percent   struct {
		Home string `json:"home"`
		Draw string `json:"draw"`
		Away string `json:"away"`
	} `json:"percent"`
}

// Split is a home/away pair of display strings such as "45%" or "-1.5".
type Split struct {
	Home string `json:"home"`
	Away string `json:"away"`
}

// FixtureStatistics holds one team's match statistics.
type FixtureStatistics struct {
	Team       TeamRef     `json:"team"`
	Statistics []Statistic `json:"statistics"`
}

// Statistic values are numbers, percentage strings or null depending on Type.
type Statistic struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type Lineup struct {
	Team        TeamRef        `json:"team"`
	Formation   string         `json:"formation"`
	Coach       Person         `json:"coach"`
	StartXI     []LineupPlayer `json:"startXI"`
	Substitutes []LineupPlayer `json:"substitutes"`
}

type LineupPlayer struct {
	Player struct {
		ID     int     `json:"id"`
		Name   string  `json:"name"`
		Number int     `json:"number"`
		Pos    string  `json:"pos"`
		Grid   *string `json:"grid"`
	} `json:"player"`
}

type Person struct {
	ID    *int   `json:"id"`
	Name  string `json:"name"`
	Photo string `json:"photo,omitempty"`
}

type Event struct {
	Time struct {
		Elapsed int  `json:"elapsed"`
		Extra   *int `json:"extra"`
	} `json:"time"`
	Team     TeamRef `json:"team"`
	Player   Person  `json:"player"`
	Assist   Person  `json:"assist"`
	Type     string  `json:"type"`
	Detail   string  `json:"detail"`
	Comments *string `json:"comments"`
}

// Standing is one table row.
type Standing struct {
	Rank        int         `json:"rank"`
	Team        TeamRef     `json:"team"`
	Points      int         `json:"points"`
	GoalsDiff   int         `json:"goalsDiff"`
	Group       string      `json:"group"`
	Form        string      `json:"form"`
	Status      string      `json:"status"`
	Description *string     `json:"description"`
	All         RecordSplit `json:"all"`
	Home        RecordSplit `json:"home"`
	Away        RecordSplit `json:"away"`
	Update      time.Time   `json:"update"`
}

type RecordSplit struct {
	Played int `json:"played"`
	Win    int `json:"win"`
	Draw   int `json:"draw"`
	Lose   int `json:"lose"`
	Goals  struct {
		For     int `json:"for"`
		Against int `json:"against"`
	} `json:"goals"`
}

type standingsItem struct {
	League struct {
		ID        int          `json:"id"`
		Season    int          `json:"season"`
		Standings [][]Standing `json:"standings"`
	} `json:"league"`
}

// TeamInfo is one element of the /teams response.
type TeamInfo struct {
	Team  Team  `json:"team"`
	Venue Venue `json:"venue"`
}

type Team struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Country  string `json:"country"`
	Founded  int    `json:"founded"`
	National bool   `json:"national"`
	Logo     string `json:"logo"`
}

// TeamStatistics is the /teams/statistics payload, trimmed to what the
// service renders.
type TeamStatistics struct {
	League   League  `json:"league"`
	Team     TeamRef `json:"team"`
	Form     string  `json:"form"`
	Fixtures struct {
		Played Totals `json:"played"`
		Wins   Totals `json:"wins"`
		Draws  Totals `json:"draws"`
		Loses  Totals `json:"loses"`
	} `json:"fixtures"`
	Goals struct {
		For     GoalTotals `json:"for"`
		Against GoalTotals `json:"against"`
	} `json:"goals"`
	CleanSheet    Totals `json:"clean_sheet"`
	FailedToScore Totals `json:"failed_to_score"`
}

type Totals struct {
	Home  int `json:"home"`
	Away  int `json:"away"`
	Total int `json:"total"`
}

type GoalTotals struct {
	Total   Totals `json:"total"`
	Average struct {
		Home  string `json:"home"`
		Away  string `json:"away"`
		Total string `json:"total"`
	} `json:"average"`
}

// FixtureDetails is everything the match screen shows for one fixture.
type FixtureDetails struct {
	Fixture    Fixture             `json:"fixture"`
	Prediction *Prediction         `json:"prediction,omitempty"`
	Statistics []FixtureStatistics `json:"statistics"`
	Lineups    []Lineup            `json:"lineups"`
	Events     []Event             `json:"events"`
	HeadToHead []Fixture           `json:"head_to_head"`
}

// TeamOverview combines team info, season statistics and recent results.
type TeamOverview struct {
	Info       TeamInfo       `json:"info"`
	Statistics TeamStatistics `json:"statistics"`
	Recent     []Fixture      `json:"recent"`
}
