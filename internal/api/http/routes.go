package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/i474232898/weatherlink-logger/internal/weather"
)

var validate = validator.New()

const (
	defaultHealthLimit  = 10
	defaultHistoryLimit = 500
)

// RegisterRoutes wires the dashboard, the JSON API and, when metrics is not
// nil, the Prometheus endpoint into the Fiber app.
func RegisterRoutes(app *fiber.App, explorer *weather.Explorer, metrics http.Handler) {
	app.Get("/", dashboardHandler(explorer))

	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics))
	}

	v1 := app.Group("/api/v1")

	v1.Get("/health", func(c *fiber.Ctx) error {
		var req healthQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		summaries, err := explorer.RecentHealth(c.UserContext(), req.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read system health")
		}
		return c.JSON(fiber.Map{
			"count":     len(summaries),
			"summaries": summaries,
		})
	})

	v1.Get("/conditions/:category/latest", func(c *fiber.Ctx) error {
		category, err := weather.ParseCategory(c.Params("category"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		row, err := explorer.Latest(c.UserContext(), category)
		if err != nil {
			if errors.Is(err, weather.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no data for requested category")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch latest conditions")
		}

		return c.JSON(fiber.Map{
			"category": category,
			"row":      row,
		})
	})

	v1.Get("/conditions/:category/history", func(c *fiber.Ctx) error {
		category, err := weather.ParseCategory(c.Params("category"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rows, err := explorer.History(c.UserContext(), category, req.From, req.To, req.Limit)
		if err != nil {
			if errors.Is(err, weather.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no data for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch condition history")
		}

		return c.JSON(fiber.Map{
			"category": category,
			"from":     req.From,
			"to":       req.To,
			"count":    len(rows),
			"rows":     rows,
			"stats":    weather.SummarizeRows(rows),
		})
	})
}

// healthQuery holds query parameters for the system health endpoint.
type healthQuery struct {
	Limit int `validate:"min=1,max=500"`
}

func (h *healthQuery) bind(c *fiber.Ctx) error {
	limit, err := parseLimit(c.Query("limit"), defaultHealthLimit)
	if err != nil {
		return err
	}
	h.Limit = limit
	return nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From  time.Time `validate:"required"`
	To    time.Time `validate:"required,gtefield=From"`
	Limit int       `validate:"min=1,max=5000"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}
	limit, err := parseLimit(c.Query("limit"), defaultHistoryLimit)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	h.Limit = limit
	return nil
}

func parseLimit(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	return n, nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
