package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ew73/slack-karma/internal/domain"
	apperrors "github.com/ew73/slack-karma/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

const (
	defaultStandingsLimit = 10
	maxStandingsLimit     = 100
)

type standingsResponse struct {
	Standings []domain.Standing `json:"standings"`
}

func (s *Server) handleListKarma(c echo.Context) error {
	limit := defaultStandingsLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxStandingsLimit {
			return apperrors.ValidationError(fmt.Sprintf("limit must be an integer between 1 and %d", maxStandingsLimit)).
				WithContext("limit", raw)
		}
		limit = n
	}

	standings, err := s.karma.Standings(c.Request().Context(), limit)
	switch {
	case errors.Is(err, domain.ErrMalformedDocument):
		return apperrors.ConflictError("stored karma document is malformed")
	case err != nil:
		return apperrors.ExternalError("failed to load karma standings", err)
	}

	if err := c.JSON(http.StatusOK, standingsResponse{Standings: standings}); err != nil {
		return fmt.Errorf("failed to write standings response: %w", err)
	}
	return nil
}

func (s *Server) handleGetKarma(c echo.Context) error {
	subject := c.Param("subject")
	if unescaped, err := url.PathUnescape(subject); err == nil {
		subject = unescaped
	}
	if subject == "" {
		return apperrors.ValidationError("subject is required")
	}

	karma, err := s.karma.Lookup(c.Request().Context(), subject)
	switch {
	case errors.Is(err, domain.ErrInvalidKarma):
		return apperrors.ConflictError("stored karma value is not a number").WithContext("subject", subject)
	case errors.Is(err, domain.ErrMalformedDocument):
		return apperrors.ConflictError("stored karma document is malformed").WithContext("subject", subject)
	case err != nil:
		return apperrors.ExternalError("failed to load karma", err)
	}

	if err := c.JSON(http.StatusOK, domain.Standing{Subject: subject, Karma: karma}); err != nil {
		return fmt.Errorf("failed to write karma response: %w", err)
	}
	return nil
}
