package server

import (
	"github.com/labstack/echo/v4"

	"github.com/draftboard/draftboard/internal/agent"
)

func (s *Server) aiDispatch(c echo.Context) error {
	if s.agent == nil {
		return validationf(c, "AI backend is not configured; set OPENAI_API_KEY")
	}

	var req agent.Request
	if err := c.Bind(&req); err != nil {
		return validationf(c, "malformed request body")
	}
	if req.Message == "" {
		return validationf(c, "message is required")
	}

	result, err := s.agent.Run(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, result)
}

func (s *Server) aiTools(c echo.Context) error {
	return ok(c, s.registry.OpenAITools())
}
