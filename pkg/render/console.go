package render

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/picogrid/hexfleet/pkg/logger"
	"github.com/picogrid/hexfleet/pkg/models"
)

var priorityColors = map[models.Priority]*color.Color{
	models.PriorityHigh:   color.New(color.FgRed, color.Bold),
	models.PriorityMedium: color.New(color.FgYellow),
	models.PriorityLow:    color.New(color.FgHiBlack),
}

// Console prints delivery and cell tables.
type Console struct {
	w        io.Writer
	every    uint64
	maxCells int
	noColor  bool
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// Every prints only one frame out of n.
func Every(n int) ConsoleOption {
	return func(c *Console) {
		if n > 0 {
			c.every = uint64(n)
		}
	}
}

// MaxCells limits the cell table to the n busiest cells.
func MaxCells(n int) ConsoleOption {
	return func(c *Console) { c.maxCells = n }
}

// NoColor disables priority coloring.
func NoColor(noColor bool) ConsoleOption {
	return func(c *Console) { c.noColor = noColor }
}

// NewConsole creates a console renderer writing to w.
func NewConsole(w io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{w: w, every: 1, maxCells: 8}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Render implements Renderer.
func (c *Console) Render(_ context.Context, f *Frame) error {
	if f.Seq%c.every != 0 {
		return nil
	}

	_, _ = fmt.Fprintf(c.w, "\ntick %d  zoom %.1f  res %d  cells %d  events %d\n",
		f.Seq, f.Zoom, f.Resolution, len(f.Cells), len(f.Events))

	deliveries := logger.NewTable("ID", "STATUS", "PROGRESS", "CELL", "DIST", "ETA", "PRICE", "DRIVER")
	for _, d := range f.Deliveries {
		cell, dist, eta, price := "-", "-", "-", "-"
		if d.CurrentCell != 0 {
			cell = d.CurrentCell.String()
		}
		if d.Metrics != nil {
			dist = fmt.Sprintf("%d", d.Metrics.GridDistance)
			eta = fmt.Sprintf("%.0fm", d.Metrics.ETAMinutes)
			price = fmt.Sprintf("$%.2f", d.Metrics.Price)
		}
		deliveries.AddRow(
			c.paint(d.Priority, d.ID),
			string(d.Status),
			fmt.Sprintf("%s %3.0f%%", logger.Bar(d.Progress, 10), d.Progress*100),
			cell, dist, eta, price, d.DriverName,
		)
	}
	deliveries.Fprint(c.w)

	cells := make([]models.GeoCell, len(f.Cells))
	copy(cells, f.Cells)
	sort.SliceStable(cells, func(i, j int) bool { return cells[i].Count() > cells[j].Count() })
	if c.maxCells > 0 && len(cells) > c.maxCells {
		cells = cells[:c.maxCells]
	}
	if len(cells) > 0 {
		_, _ = fmt.Fprintln(c.w)
		table := logger.NewTable("CELL", "COUNT", "DENSITY", "MARKER", "MEMBERS")
		for _, cell := range cells {
			marker := f.MarkerPosition(cell)
			table.AddRow(
				cell.ID.String(),
				fmt.Sprintf("%d", cell.Count()),
				logger.Bar(cell.Density, 8),
				marker.String(),
				fmt.Sprintf("%v", cell.Members),
			)
		}
		table.Fprint(c.w)
	}
	return nil
}

func (c *Console) paint(p models.Priority, s string) string {
	col, ok := priorityColors[p]
	if c.noColor || !ok {
		return s
	}
	return col.Sprint(s)
}
