package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/picogrid/hexfleet/pkg/config"
	"github.com/picogrid/hexfleet/pkg/engine"
	"github.com/picogrid/hexfleet/pkg/geoindex"
	"github.com/picogrid/hexfleet/pkg/logger"
	"github.com/picogrid/hexfleet/pkg/models"
	"github.com/picogrid/hexfleet/pkg/render"
)

var cellsCmd = &cobra.Command{
	Use:   "cells",
	Short: "Aggregate a scenario into grid cells once and print the result",
	Long: `Advance a scenario a fixed number of ticks without waiting between them,
then print the occupied cells and the metrics of every delivery.`,
	RunE: showCells,
}

func init() {
	cellsCmd.Flags().String("scenario", "", "scenario file (default is the built-in metro scenario)")
	cellsCmd.Flags().Float64("zoom", 0, "map zoom level (overrides configuration)")
	cellsCmd.Flags().Int("ticks", 0, "ticks to advance before aggregating")
	cellsCmd.Flags().String("geojson", "", "write the frame as GeoJSON to this file (- for stdout)")
	cellsCmd.Flags().String("around", "", "only list cells within --rings steps of this cell token")
	cellsCmd.Flags().Int("rings", 1, "grid distance used with --around")
}

// scenarioEngine builds an engine for the scenario named by --scenario with
// no renderer or notifier attached.
func scenarioEngine(cmd *cobra.Command) (*engine.Engine, *config.Scenario, error) {
	scenario, err := loadScenario(cmd)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := engineConfig()
	if err != nil {
		return nil, nil, err
	}
	scenario.ApplyTo(&cfg)
	if cmd.Flags().Changed("zoom") {
		cfg.Zoom, _ = cmd.Flags().GetFloat64("zoom")
	}

	eng, err := engine.New(cfg, scenario.Deliveries, scenario.Fences(time.Now()), engine.Options{
		Logger: logger.WithPrefix("cells"),
	})
	if err != nil {
		return nil, nil, err
	}

	ticks, _ := cmd.Flags().GetInt("ticks")
	if ticks <= 0 {
		return eng, scenario, nil
	}
	spinner := logger.NewSpinner(fmt.Sprintf("Advancing %s", scenario.Name))
	spinner.Start()
	for i := 0; i < ticks; i++ {
		spinner.UpdateMessage(fmt.Sprintf("Advancing %s: tick %d/%d", scenario.Name, i+1, ticks))
		if _, err := eng.Step(cmd.Context()); err != nil {
			spinner.Error(fmt.Sprintf("Tick %d failed: %v", i+1, err))
			return nil, nil, err
		}
	}
	spinner.Stop()
	logger.Progressf("Advanced %s by %d ticks", scenario.Name, ticks)
	return eng, scenario, nil
}

func showCells(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("geojson")
	if path == "-" {
		// Keep stdout for the frame.
		logger.SetOutput(os.Stderr)
	}
	eng, scenario, err := scenarioEngine(cmd)
	if err != nil {
		return err
	}
	frame := eng.Frame()

	if path != "" {
		return writeFrame(frame, path)
	}

	keep, err := cellFilter(cmd)
	if err != nil {
		return err
	}

	logger.LogSection(fmt.Sprintf("%s at zoom %.1f (resolution %d)", scenario.Name, frame.Zoom, frame.Resolution))
	counts := eng.Snapshot().Counts()
	for _, status := range []models.Status{
		models.StatusPending,
		models.StatusPickedUp,
		models.StatusOutForDelivery,
		models.StatusDelayed,
		models.StatusDelivered,
	} {
		if n := counts[status]; n > 0 {
			logger.LogKeyValue(string(status), n)
		}
	}
	fmt.Println()

	cells := logger.NewTable("CELL", "COUNT", "DENSITY", "CENTER", "MEMBERS")
	for _, c := range frame.Cells {
		if keep != nil && !keep[c.ID] {
			continue
		}
		cells.AddRow(
			c.ID.String(),
			fmt.Sprint(c.Count()),
			logger.Bar(c.Density, 10),
			c.Center.String(),
			strings.Join(c.Members, ","),
		)
	}
	if cells.Len() == 0 {
		logger.Info("No occupied cells")
	} else {
		cells.Fprint(os.Stdout)
	}

	fmt.Println()
	deliveries := logger.NewTable("DELIVERY", "STATUS", "PROGRESS", "CELL", "STEPS", "CONGESTION", "PRICE", "ETA")
	for _, d := range frame.Deliveries {
		row := []string{d.ID, string(d.Status), fmt.Sprintf("%.0f%%", d.Progress*100), "-", "-", "-", "-", "-"}
		if d.CurrentCell != 0 {
			row[3] = d.CurrentCell.String()
		}
		if m := d.Metrics; m != nil {
			row[4] = fmt.Sprint(m.GridDistance)
			row[5] = fmt.Sprintf("%.2f", m.CongestionScore)
			row[6] = fmt.Sprintf("$%.2f", m.Price)
			row[7] = fmt.Sprintf("%.1f min", m.ETAMinutes)
		}
		deliveries.AddRow(row...)
	}
	deliveries.Fprint(os.Stdout)
	return nil
}

// cellFilter returns the cells around --around, or nil when no filter is set.
func cellFilter(cmd *cobra.Command) (map[models.CellID]bool, error) {
	token, _ := cmd.Flags().GetString("around")
	if token == "" {
		return nil, nil
	}
	center, err := geoindex.ParseCell(token)
	if err != nil {
		return nil, err
	}
	rings, _ := cmd.Flags().GetInt("rings")
	around, err := geoindex.Neighbors(center, rings)
	if err != nil {
		return nil, err
	}
	keep := make(map[models.CellID]bool, len(around))
	for _, id := range around {
		keep[id] = true
	}
	return keep, nil
}

func writeFrame(frame *render.Frame, path string) error {
	data, err := render.MarshalFrame(frame)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Successf("Frame %d written to %s", frame.Seq, path)
	return nil
}
