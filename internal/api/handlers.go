package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/iabetor/okto/internal/auth"
	"github.com/iabetor/okto/internal/feed"
	"github.com/iabetor/okto/internal/insights"
	"github.com/iabetor/okto/internal/logger"
	"github.com/iabetor/okto/internal/news"
	"github.com/iabetor/okto/internal/profile"
	"github.com/labstack/echo/v4"
)

// articleView 是新闻流中单篇文章的输出格式。
type articleView struct {
	ID          int64   `json:"id"`
	Source      string  `json:"source"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	URL         string  `json:"url"`
	ImageURL    *string `json:"image_url"`
	PublishedAt string  `json:"published_at"`
	Category    string  `json:"category"`
	Author      *string `json:"author"`
}

func newArticleView(a news.Article) articleView {
	return articleView{
		ID:          a.ID,
		Source:      a.Source,
		Title:       a.Title,
		Description: a.Description,
		URL:         a.URL,
		ImageURL:    a.ImageURL,
		PublishedAt: a.PublishedAt.UTC().Format(time.RFC3339),
		Category:    a.Category,
		Author:      a.Author,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": AppName, "version": Version})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	sess, err := s.auth.Signup(c.Request().Context(), req)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusBadRequest, "Email already registered")
	case errors.Is(err, auth.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	sess, err := s.auth.Login(c.Request().Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) handleMe(c echo.Context) error {
	u := currentUser(c)
	return c.JSON(http.StatusOK, echo.Map{
		"id":         u.ID,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
	})
}

func (s *Server) handleGetProfile(c echo.Context) error {
	userID, err := authorizeUser(c, c.Param("user_id"))
	if err != nil {
		return err
	}

	p, err := s.profiles.Get(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	if p == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Profile not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleUpdateProfile(c echo.Context) error {
	userID, err := authorizeUser(c, c.Param("user_id"))
	if err != nil {
		return err
	}

	var u profile.Update
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	if _, err := s.profiles.Update(c.Request().Context(), userID, u); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Profile not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Profile updated successfully"})
}

func (s *Server) handleFeed(c echo.Context) error {
	var userID int64
	limit := feed.DefaultLimit
	if err := echo.QueryParamsBinder(c).
		MustInt64("user_id", &userID).
		Int("limit", &limit).
		BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user_id or limit")
	}
	if err := checkOwner(c, userID); err != nil {
		return err
	}

	articles, err := s.feed.GetFeed(c.Request().Context(), userID, limit)
	if err != nil {
		return err
	}
	views := make([]articleView, 0, len(articles))
	for _, a := range articles {
		views = append(views, newArticleView(a))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) handleRefresh(c echo.Context) error {
	if err := s.feed.Refresh(c.Request().Context()); err != nil {
		logger.Errorf("[api] 手动刷新新闻失败: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Error refreshing news: "+err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "News refreshed successfully"})
}

func (s *Server) handleSources(c echo.Context) error {
	sources, err := s.feed.Sources(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"sources": sources})
}

func (s *Server) handleInsights(c echo.Context) error {
	userID, err := authorizeUser(c, c.Param("user_id"))
	if err != nil {
		return err
	}

	p, err := s.profiles.Get(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"insights": insights.Generate(p)})
}
