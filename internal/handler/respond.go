package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Pagination echoes back the page window applied to a list query.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
}

func newPagination(page, limit int, total int64) Pagination {
	totalPages := int(total) / limit
	if int(total)%limit != 0 {
		totalPages++
	}
	return Pagination{CurrentPage: page, TotalPages: totalPages, Limit: limit, Total: total}
}

func ok(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Response{Success: true, Data: data})
}

func okMessage(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func fail(c echo.Context, status int, message string) error {
	resp := Response{Success: false, Message: message}
	// 5xx envelopes carry a generic error marker; the detail stays in
	// the server log.
	if status >= http.StatusInternalServerError {
		resp.Error = http.StatusText(status)
	}
	return c.JSON(status, resp)
}

// pageParams parses page/limit query parameters with bounds.
func pageParams(c echo.Context, defaultLimit int) (page, limit, offset int) {
	page = queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	limit = queryInt(c, "limit", defaultLimit)
	if limit < 1 || limit > 100 {
		limit = defaultLimit
	}
	return page, limit, (page - 1) * limit
}

func queryInt(c echo.Context, name string, defaultValue int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}
