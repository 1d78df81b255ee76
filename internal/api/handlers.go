package api

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Mc-ouma/LivPredApp-sub001/aggregate"
	"github.com/Mc-ouma/LivPredApp-sub001/football"
	"github.com/Mc-ouma/LivPredApp-sub001/httpx"
	"github.com/Mc-ouma/LivPredApp-sub001/notify"
)

const dateLayout = "2006-01-02"

const healthTimeout = 2 * time.Second

func (h *Handler) health(c httpx.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := httpx.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.log.WithError(err).WithField("check", name).Warn("health check failed")
			checks[name] = err.Error()
			status = httpx.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	state := "ok"
	if status != httpx.StatusOK {
		state = "degraded"
	}
	return c.JSON(status, map[string]any{"status": state, "checks": checks})
}

func (h *Handler) leagues(c httpx.Context) error {
	return c.JSON(httpx.StatusOK, h.football.Leagues())
}

// fixtures lists one league's fixtures for a date, or every known league when
// league is omitted.
func (h *Handler) fixtures(c httpx.Context) error {
	date, err := h.dateParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	league := strings.TrimSpace(c.QueryParam("league"))
	refresh := refreshRequested(c)

	if league == "" {
		if refresh {
			return httpx.HTTPError(httpx.StatusBadRequest, "refresh needs a league")
		}
		return render(c, h.football.Day(ctx, date))
	}
	if refresh {
		return render(c, h.football.RefreshFixtures(ctx, league, date))
	}
	return render(c, h.football.Fixtures(ctx, league, date))
}

func (h *Handler) fixtureDetails(c httpx.Context) error {
	id, err := intParam(c.Param("id"), "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if refreshRequested(c) {
		return render(c, h.football.RefreshFixtureDetails(ctx, id))
	}
	return render(c, h.football.FixtureDetails(ctx, id))
}

func (h *Handler) team(c httpx.Context) error {
	id, err := intParam(c.Param("id"), "id")
	if err != nil {
		return err
	}
	ref := c.QueryParam("league")
	comp, ok := football.LookupLeague(ref, h.football.Leagues())
	if !ok {
		return httpx.HTTPError(httpx.StatusBadRequest, "unknown or missing league "+strconv.Quote(ref))
	}
	season, err := h.seasonParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if refreshRequested(c) {
		return render(c, h.football.RefreshTeam(ctx, id, comp.ID, season))
	}
	return render(c, h.football.Team(ctx, id, comp.ID, season))
}

func (h *Handler) standings(c httpx.Context) error {
	league := strings.TrimSpace(c.QueryParam("league"))
	if league == "" {
		return httpx.HTTPError(httpx.StatusBadRequest, "league is required")
	}
	season, err := h.seasonParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if refreshRequested(c) {
		return render(c, h.football.RefreshStandings(ctx, league, season))
	}
	return render(c, h.football.Standings(ctx, league, season))
}

func (h *Handler) listFavorites(c httpx.Context) error {
	return c.JSON(httpx.StatusOK, h.favorites.List())
}

func (h *Handler) addFavorite(c httpx.Context) error {
	id, err := intParam(c.Param("fixtureID"), "fixtureID")
	if err != nil {
		return err
	}
	fav, err := h.favorites.Add(c.Request().Context(), id)
	if err != nil {
		h.log.WithError(err).WithField("fixture_id", id).Warn("favorite failed")
		return httpx.HTTPError(favoriteStatus(err), aggregate.Describe(err))
	}
	return c.JSON(httpx.StatusOK, fav)
}

func (h *Handler) removeFavorite(c httpx.Context) error {
	id, err := intParam(c.Param("fixtureID"), "fixtureID")
	if err != nil {
		return err
	}
	if err := h.favorites.Remove(c.Request().Context(), id); err != nil {
		return httpx.HTTPError(httpx.StatusInternalError, err.Error())
	}
	return c.NoContent(httpx.StatusNoContent)
}

func (h *Handler) dateParam(c httpx.Context) (time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam("date"))
	if raw == "" {
		now := h.now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, httpx.HTTPError(httpx.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	return d, nil
}

// seasonParam returns 0, meaning the current season, when season is absent.
func (h *Handler) seasonParam(c httpx.Context) (int, error) {
	raw := strings.TrimSpace(c.QueryParam("season"))
	if raw == "" {
		return 0, nil
	}
	season, err := strconv.Atoi(raw)
	if err != nil || season < 1900 {
		return 0, httpx.HTTPError(httpx.StatusBadRequest, "season must be a year")
	}
	return season, nil
}

func intParam(raw, name string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, httpx.HTTPError(httpx.StatusBadRequest, name+" must be a positive integer")
	}
	return n, nil
}

func refreshRequested(c httpx.Context) bool {
	ok, _ := strconv.ParseBool(c.QueryParam("refresh"))
	return ok
}

func render[T any](c httpx.Context, res aggregate.Result[T]) error {
	if !res.IsError() {
		return c.JSON(httpx.StatusOK, res)
	}
	return c.JSON(resultStatus(res.Err), res)
}

func resultStatus(err error) int {
	switch {
	case errors.Is(err, football.ErrUnknownLeague):
		return httpx.StatusBadRequest
	case errors.Is(err, football.ErrNotFound):
		return httpx.StatusNotFound
	}
	switch aggregate.Classify(err) {
	case aggregate.KindTimeout:
		return httpx.StatusGatewayTimeout
	case aggregate.KindCanceled:
		return httpx.StatusServiceUnavailable
	default:
		return httpx.StatusBadGateway
	}
}

func favoriteStatus(err error) int {
	switch {
	case errors.Is(err, notify.ErrMatchStarted), errors.Is(err, notify.ErrFireTimeElapsed):
		return httpx.StatusConflict
	case errors.Is(err, notify.ErrInvalidRequest):
		return httpx.StatusBadRequest
	}
	return resultStatus(err)
}
