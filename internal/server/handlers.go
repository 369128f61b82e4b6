package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/reflectd-dev/reflectd/internal/engine"
	"github.com/reflectd-dev/reflectd/internal/reflection"
	"github.com/reflectd-dev/reflectd/internal/store"
	"github.com/reflectd-dev/reflectd/internal/summary"
)

type tokenRequest struct {
	UserID string `json:"userId"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type submitRequest struct {
	Content string `json:"content"`
}

// reflectionResponse wraps a record with derived flags the client needs.
type reflectionResponse struct {
	*reflection.Record
	HasStarted bool `json:"hasStarted"`
	Saved      bool `json:"saved"`
}

func recordResponse(rec *reflection.Record, saved bool) reflectionResponse {
	return reflectionResponse{Record: rec, HasStarted: rec.Started(), Saved: saved}
}

func (s *Server) handleToken(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}

	token, err := s.auth.Issue(userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "token issuance failed")
	}
	return c.JSON(http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(s.auth.TTL()),
	})
}

func (s *Server) handleStart(c echo.Context) error {
	date, err := pathDate(c)
	if err != nil {
		return err
	}

	rec, err := s.engine.Start(c.Request().Context(), currentUserID(c), date)
	switch {
	case errors.Is(err, engine.ErrAlreadyStarted):
		// Starting an existing session returns it unchanged.
		return c.JSON(http.StatusOK, recordResponse(rec, true))
	case store.IsStorageError(err):
		// The opening turn exists in memory even if persistence failed.
		return c.JSON(http.StatusOK, recordResponse(rec, false))
	case err != nil:
		return s.internalError(c, "start session", err)
	}
	return c.JSON(http.StatusCreated, recordResponse(rec, true))
}

func (s *Server) handleSubmit(c echo.Context) error {
	date, err := pathDate(c)
	if err != nil {
		return err
	}

	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rec, err := s.engine.Submit(c.Request().Context(), currentUserID(c), date, req.Content)
	switch {
	case engine.IsValidationError(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "no session for this date")
	case store.IsStorageError(err):
		// The turn completed; only persistence failed.
		return c.JSON(http.StatusOK, recordResponse(rec, false))
	case err != nil:
		return s.internalError(c, "submit message", err)
	}
	return c.JSON(http.StatusOK, recordResponse(rec, true))
}

func (s *Server) handleGet(c echo.Context) error {
	date, err := pathDate(c)
	if err != nil {
		return err
	}

	rec, err := s.engine.Load(c.Request().Context(), currentUserID(c), date)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no session for this date")
	}
	if err != nil {
		return s.internalError(c, "load session", err)
	}
	return c.JSON(http.StatusOK, recordResponse(rec, true))
}

func (s *Server) handleProgress(c echo.Context) error {
	progress, err := s.engine.ProgressFor(c.Request().Context(), currentUserID(c))
	if err != nil {
		return s.internalError(c, "compute progress", err)
	}
	return c.JSON(http.StatusOK, progress)
}

func (s *Server) handleSummaries(c echo.Context) error {
	sums, err := s.store.ListSummaries(c.Request().Context(), currentUserID(c))
	if err != nil {
		return s.internalError(c, "list summaries", err)
	}
	if sums == nil {
		sums = []*reflection.WeeklySummary{}
	}
	return c.JSON(http.StatusOK, sums)
}

// handleRunSummary generates the summary for the week containing the
// :week path parameter.
func (s *Server) handleRunSummary(c echo.Context) error {
	if s.summarizer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "summaries are not configured")
	}

	parsed, err := time.ParseInLocation(reflection.DateFormat, c.Param("week"), time.UTC)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "week must be YYYY-MM-DD")
	}
	weekStart := reflection.WeekStart(parsed)

	sum, err := s.summarizer.WeekFor(c.Request().Context(), currentUserID(c), weekStart)
	if errors.Is(err, summary.ErrNoSessions) {
		return echo.NewHTTPError(http.StatusNotFound, "no sessions in that week")
	}
	if err != nil {
		return s.internalError(c, "generate summary", err)
	}
	return c.JSON(http.StatusCreated, sum)
}

func (s *Server) handleGetProfile(c echo.Context) error {
	profile, err := s.store.LoadProfile(c.Request().Context(), currentUserID(c))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no profile")
	}
	if err != nil {
		return s.internalError(c, "load profile", err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) handlePutProfile(c echo.Context) error {
	var profile reflection.Profile
	if err := c.Bind(&profile); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	profile.UserID = currentUserID(c)
	profile.UpdatedAt = time.Now().UTC()
	if strings.TrimSpace(profile.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	if err := s.store.SaveProfile(c.Request().Context(), &profile); err != nil {
		return s.internalError(c, "save profile", err)
	}
	return c.JSON(http.StatusOK, profile)
}

// pathDate validates the :date path parameter.
func pathDate(c echo.Context) (string, error) {
	date := c.Param("date")
	if _, err := time.ParseInLocation(reflection.DateFormat, date, time.UTC); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	return date, nil
}

func (s *Server) internalError(c echo.Context, op string, err error) error {
	s.logger.Error(op+" failed",
		zap.String("user_id", currentUserID(c)),
		zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
