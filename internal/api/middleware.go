package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/iabetor/okto/internal/auth"
	"github.com/labstack/echo/v4"
)

const userKey = "okto.user"

// requireAuth 从 Authorization: Bearer 头或 token 查询参数读取令牌。
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if token == "" {
			token = c.QueryParam("token")
		}
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
		}

		u, err := s.auth.Authenticate(c.Request().Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}
			return err
		}
		c.Set(userKey, u)
		return next(c)
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func currentUser(c echo.Context) *auth.User {
	u, _ := c.Get(userKey).(*auth.User)
	return u
}

// authorizeUser 校验路径中的 user_id 属于当前用户。
func authorizeUser(c echo.Context, raw string) (int64, error) {
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid user_id")
	}
	return userID, checkOwner(c, userID)
}

func checkOwner(c echo.Context, userID int64) error {
	u := currentUser(c)
	if u == nil || u.ID != userID {
		return echo.NewHTTPError(http.StatusForbidden, "Not authorized")
	}
	return nil
}
