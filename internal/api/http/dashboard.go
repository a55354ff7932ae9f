package httpapi

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weatherlink-logger/internal/weather"
)

//go:embed templates/*.html
var templatesFS embed.FS

var dashboardTmpl = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"status": func(v int) string {
		if v == 1 {
			return "ok"
		}
		return "fail"
	},
	"deref": func(s *string) string { return *s },
}).ParseFS(templatesFS, "templates/dashboard.html"))

type dashboardField struct {
	Name  string
	Value any
}

type dashboardCategory struct {
	Name      string
	Found     bool
	Timestamp time.Time
	Fields    []dashboardField
}

type dashboardData struct {
	GeneratedAt time.Time
	Health      []weather.HealthSummary
	Categories  []dashboardCategory
}

func dashboardHandler(explorer *weather.Explorer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, err := loadDashboard(c.UserContext(), explorer)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		var buf bytes.Buffer
		if err := dashboardTmpl.Execute(&buf, data); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to render dashboard")
		}
		c.Type("html", "utf-8")
		return c.Send(buf.Bytes())
	}
}

func loadDashboard(ctx context.Context, explorer *weather.Explorer) (dashboardData, error) {
	data := dashboardData{GeneratedAt: time.Now().UTC()}

	health, err := explorer.RecentHealth(ctx, defaultHealthLimit)
	if err != nil {
		return data, fmt.Errorf("failed to read system health: %w", err)
	}
	data.Health = health

	for _, cat := range weather.Categories() {
		dc := dashboardCategory{Name: string(cat)}
		row, err := explorer.Latest(ctx, cat)
		switch {
		case errors.Is(err, weather.ErrNotFound):
		case err != nil:
			return data, fmt.Errorf("failed to read %s conditions: %w", cat, err)
		default:
			dc.Found = true
			dc.Timestamp = row.Timestamp
			dc.Fields = sortedFields(row.Values)
		}
		data.Categories = append(data.Categories, dc)
	}
	return data, nil
}

func sortedFields(values map[string]any) []dashboardField {
	out := make([]dashboardField, 0, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		out = append(out, dashboardField{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
