package httpapi

import (
	"context"
	"net/http"

	flowAuth "github.com/MrEthical07/flowAuth"
	"github.com/MrEthical07/flowAuth/middleware"
	"github.com/labstack/echo/v4"
)

// requestContext copies caller metadata into the context handed to the
// engine so audit events can carry it.
func requestContext(c echo.Context) context.Context {
	req := c.Request()
	ctx := flowAuth.WithClientIP(req.Context(), c.RealIP())
	return flowAuth.WithUserAgent(ctx, req.UserAgent())
}

func (s *Server) login(c echo.Context) error {
	var req flowAuth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return errMalformedBody
	}

	// The error is already classified in the result; the status and message
	// carried there are what the client sees.
	res, _ := s.engine.Login(requestContext(c), req)
	return c.JSON(res.StatusCode, res)
}

func (s *Server) register(c echo.Context) error {
	var req flowAuth.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return errMalformedBody
	}

	res, _ := s.engine.Register(requestContext(c), req)
	return c.JSON(res.StatusCode, res)
}

func (s *Server) health(c echo.Context) error {
	if err := s.engine.Ping(c.Request().Context()); err != nil {
		s.logger.WarnContext(c.Request().Context(), "health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type sessionResponse struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Email     string `json:"email,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

func (s *Server) session(c echo.Context) error {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	out := sessionResponse{
		UserID:    claims.UID,
		SessionID: claims.SID,
		Email:     claims.Email,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return c.JSON(http.StatusOK, out)
}
