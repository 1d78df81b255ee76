package football

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/Mc-ouma/LivPredApp-sub001/httpx"
)

// fakeAPI serves canned API-Football envelopes and counts calls per endpoint.
type fakeAPI struct {
	mu       sync.Mutex
	calls    map[string]int
	fail     map[string]int
	fixtures map[string][]Fixture // by league id
	lastKey  atomic.Value
	ts       *httpx.TestServer
}

func kickoff() time.Time { return time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC) }

func sampleFixture(id, home, away int) Fixture {
	var f Fixture
	f.Fixture.ID = id
	f.Fixture.Date = kickoff()
	f.Fixture.Status = FixtureStatus{Long: "Not Started", Short: "NS"}
	f.League = League{ID: 39, Name: "Premier League", Season: 2023}
	f.Teams.Home = TeamRef{ID: home, Name: fmt.Sprintf("Team %d", home)}
	f.Teams.Away = TeamRef{ID: away, Name: fmt.Sprintf("Team %d", away)}
	return f
}

func envelopeOf(v any) map[string]any {
	return map[string]any{"get": "x", "errors": []any{}, "results": 1, "response": v}
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		calls: map[string]int{},
		fail:  map[string]int{},
		fixtures: map[string][]Fixture{
			"39":  {sampleFixture(1001, 42, 49), sampleFixture(1002, 40, 50)},
			"140": {sampleFixture(2001, 529, 541)},
			"135": {},
		},
	}
	f.ts = httpx.NewAppTestServer(func(a *httpx.App) {
		a.GET("/fixtures", func(c httpx.Context) error {
			if done, err := f.hit(c, "/fixtures"); done {
				return err
			}
			if id := c.QueryParam("id"); id != "" {
				for _, list := range f.fixtures {
					for _, fx := range list {
						if fmt.Sprint(fx.ID()) == id {
							return c.JSON(httpx.StatusOK, envelopeOf([]Fixture{fx}))
						}
					}
				}
				return c.JSON(httpx.StatusOK, envelopeOf([]Fixture{}))
			}
			if team := c.QueryParam("team"); team != "" {
				return c.JSON(httpx.StatusOK, envelopeOf([]Fixture{sampleFixture(900, 42, 1)}))
			}
			return c.JSON(httpx.StatusOK, envelopeOf(f.fixtures[c.QueryParam("league")]))
		})
		a.GET("/fixtures/headtohead", func(c httpx.Context) error {
			if done, err := f.hit(c, "/fixtures/headtohead"); done {
				return err
			}
			return c.JSON(httpx.StatusOK, envelopeOf([]Fixture{sampleFixture(500, 42, 49)}))
		})
		a.GET("/predictions", func(c httpx.Context) error {
			if done, err := f.hit(c, "/predictions"); done {
				return err
			}
			var p Prediction
			p.Predictions.Advice = "Double chance : Arsenal or draw"
			return c.JSON(httpx.StatusOK, envelopeOf([]Prediction{p}))
		})
		a.GET("/fixtures/statistics", func(c httpx.Context) error {
			if done, err := f.hit(c, "/fixtures/statistics"); done {
				return err
			}
			return c.JSON(httpx.StatusOK, envelopeOf([]FixtureStatistics{{
				Team:       TeamRef{ID: 42},
				Statistics: []Statistic{{Type: "Ball Possession", Value: "55%"}},
			}}))
		})
		a.GET("/fixtures/lineups", func(c httpx.Context) error {
			if done, err := f.hit(c, "/fixtures/lineups"); done {
				return err
			}
			return c.JSON(httpx.StatusOK, envelopeOf([]Lineup{{Team: TeamRef{ID: 42}, Formation: "4-3-3"}}))
		})
		a.GET("/fixtures/events", func(c httpx.Context) error {
			if done, err := f.hit(c, "/fixtures/events"); done {
				return err
			}
			return c.JSON(httpx.StatusOK, envelopeOf([]Event{{Type: "Goal", Detail: "Normal Goal"}}))
		})
		a.GET("/standings", func(c httpx.Context) error {
			if done, err := f.hit(c, "/standings"); done {
				return err
			}
			item := standingsItem{}
			item.League.ID = 39
			item.League.Standings = [][]Standing{{{Rank: 1, Team: TeamRef{ID: 40, Name: "Liverpool"}, Points: 45}}}
			return c.JSON(httpx.StatusOK, envelopeOf([]standingsItem{item}))
		})
		a.GET("/teams", func(c httpx.Context) error {
			if done, err := f.hit(c, "/teams"); done {
				return err
			}
			return c.JSON(httpx.StatusOK, envelopeOf([]TeamInfo{{Team: Team{ID: 42, Name: "Arsenal", Code: "ARS"}}}))
		})
		a.GET("/teams/statistics", func(c httpx.Context) error {
			if done, err := f.hit(c, "/teams/statistics"); done {
				return err
			}
			return c.JSON(httpx.StatusOK, envelopeOf(TeamStatistics{Form: "WWDLW"}))
		})
	})
	t.Cleanup(f.ts.Close)
	return f
}

// hit records the call and, when a failure was queued for endpoint, writes a
// 500 and reports done.
func (f *fakeAPI) hit(c httpx.Context, endpoint string) (bool, error) {
	f.mu.Lock()
	f.calls[endpoint]++
	failing := f.fail[endpoint] > 0
	if failing {
		f.fail[endpoint]--
	}
	f.mu.Unlock()
	f.lastKey.Store(c.Request().Header.Get("x-apisports-key"))
	if failing {
		return true, c.String(httpx.StatusInternalError, "upstream exploded")
	}
	return false, nil
}

func (f *fakeAPI) failNext(endpoint string, n int) {
	f.mu.Lock()
	f.fail[endpoint] += n
	f.mu.Unlock()
}

func (f *fakeAPI) count(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

func (f *fakeAPI) client() *Client {
	return NewClient(
		WithBaseURL(f.ts.BaseURL()),
		WithAPIKey("test-key"),
		WithRateLimit(1000, 100),
		WithLogger(quietLogger()),
	)
}

func quietLogger() logrus.FieldLogger {
	log, _ := logtest.NewNullLogger()
	return log
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
