// Package plot renders recent readings as terminal line charts.
package plot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/mitchellh/mapstructure"

	"github.com/i474232898/weatherlink-logger/internal/weather"
)

// maxPoints bounds how many rows are read per category.
const maxPoints = 10000

// Options controls a Render call. Width is the number of time slots across
// the window.
type Options struct {
	Window   time.Duration
	Location *time.Location
	Width    int
	Height   int
	Color    bool
	Now      func() time.Time
}

type outdoorPoint struct {
	Temp     *float64 `mapstructure:"temp"`
	Hum      *float64 `mapstructure:"hum"`
	DewPoint *float64 `mapstructure:"dew_point"`
}

type indoorPoint struct {
	TempIn     *float64 `mapstructure:"temp_in"`
	HumIn      *float64 `mapstructure:"hum_in"`
	DewPointIn *float64 `mapstructure:"dew_point_in"`
}

type barometricPoint struct {
	BarAbsolute *float64 `mapstructure:"bar_absolute"`
}

type sample[T any] struct {
	at    time.Time
	point T
}

// axis maps timestamps in [from, to] onto width slots.
type axis struct {
	from, to time.Time
	width    int
}

func (a axis) slot(ts time.Time) int {
	span := a.to.Sub(a.from)
	if span <= 0 {
		return a.width - 1
	}
	i := int(float64(ts.Sub(a.from)) / float64(span) * float64(a.width))
	return min(max(i, 0), a.width-1)
}

type series struct {
	name   string
	values []float64
}

type chart struct {
	title  string
	series []series
}

// Render draws temperature, humidity and pressure charts for the last
// opts.Window of stored readings.
func Render(ctx context.Context, w io.Writer, explorer *weather.Explorer, opts Options) error {
	opts = withDefaults(opts)
	to := opts.Now().UTC()
	from := to.Add(-opts.Window)

	ax := axis{from: from, to: to, width: opts.Width}

	var outdoor []sample[outdoorPoint]
	if err := load(ctx, explorer, weather.CategoryOutdoor, from, to, &outdoor); err != nil {
		return err
	}
	var indoor []sample[indoorPoint]
	if err := load(ctx, explorer, weather.CategoryIndoor, from, to, &indoor); err != nil {
		return err
	}
	var baro []sample[barometricPoint]
	if err := load(ctx, explorer, weather.CategoryBarometric, from, to, &baro); err != nil {
		return err
	}

	charts := []chart{
		{title: "Temperature / dew point (F)", series: []series{
			{"outdoor temp", collect(ax, outdoor, func(p outdoorPoint) *float64 { return p.Temp })},
			{"outdoor dew point", collect(ax, outdoor, func(p outdoorPoint) *float64 { return p.DewPoint })},
			{"indoor temp", collect(ax, indoor, func(p indoorPoint) *float64 { return p.TempIn })},
			{"indoor dew point", collect(ax, indoor, func(p indoorPoint) *float64 { return p.DewPointIn })},
		}},
		{title: "Humidity (%)", series: []series{
			{"outdoor", collect(ax, outdoor, func(p outdoorPoint) *float64 { return p.Hum })},
			{"indoor", collect(ax, indoor, func(p indoorPoint) *float64 { return p.HumIn })},
		}},
		{title: "Absolute pressure (inHg)", series: []series{
			{"barometer", collect(ax, baro, func(p barometricPoint) *float64 { return p.BarAbsolute })},
		}},
	}

	span := fmt.Sprintf("%s to %s %s",
		from.In(opts.Location).Format("Jan 02 15:04"),
		to.In(opts.Location).Format("Jan 02 15:04"),
		opts.Location.String(),
	)

	drawn := 0
	for _, c := range charts {
		graph, ok := draw(c, span, opts)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\n\n", graph); err != nil {
			return err
		}
		drawn++
	}
	if drawn == 0 {
		_, err := fmt.Fprintf(w, "No data in the last %s.\n", opts.Window)
		return err
	}
	return nil
}

func withDefaults(opts Options) Options {
	if opts.Window <= 0 {
		opts.Window = 12 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Width <= 0 {
		opts.Width = 80
	}
	if opts.Height <= 0 {
		opts.Height = 12
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// load reads a category's rows oldest first and decodes them into out.
func load[T any](ctx context.Context, explorer *weather.Explorer, c weather.Category, from, to time.Time, out *[]sample[T]) error {
	rows, err := explorer.History(ctx, c, from, to, maxPoints)
	if errors.Is(err, weather.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	points := make([]sample[T], 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		var p T
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &p,
		})
		if err != nil {
			return err
		}
		if err := dec.Decode(rows[i].Values); err != nil {
			return fmt.Errorf("decode %s row at %s: %w", c, rows[i].Timestamp, err)
		}
		points = append(points, sample[T]{at: rows[i].Timestamp, point: p})
	}
	*out = points
	return nil
}

// collect spreads one field over the axis slots. Rows are only stored when a
// reading changes, so a value holds until the next row; slots before the
// first row are NaN gaps. It returns nil when the field never has a value.
func collect[T any](ax axis, samples []sample[T], field func(T) *float64) []float64 {
	out := make([]float64, ax.width)
	for i := range out {
		out[i] = math.NaN()
	}

	start := -1
	for _, s := range samples {
		v := field(s.point)
		if v == nil {
			continue
		}
		i := ax.slot(s.at)
		if start < 0 {
			start = i
		}
		for j := i; j < ax.width; j++ {
			out[j] = *v
		}
	}
	if start < 0 {
		return nil
	}
	return out
}

var palette = []asciigraph.AnsiColor{asciigraph.Red, asciigraph.Blue, asciigraph.Green, asciigraph.Yellow}

func draw(c chart, span string, opts Options) (string, bool) {
	var data [][]float64
	var names []string
	for _, s := range c.series {
		if len(s.values) == 0 {
			continue
		}
		data = append(data, s.values)
		names = append(names, s.name)
	}
	if len(data) == 0 {
		return "", false
	}

	caption := fmt.Sprintf("%s: %v, %s", c.title, names, span)
	graphOpts := []asciigraph.Option{
		asciigraph.Height(opts.Height),
		asciigraph.Caption(caption),
	}
	if opts.Color {
		graphOpts = append(graphOpts, asciigraph.SeriesColors(palette[:len(data)]...))
	}
	return asciigraph.PlotMany(data, graphOpts...), true
}
