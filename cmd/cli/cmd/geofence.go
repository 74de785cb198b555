package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/picogrid/hexfleet/pkg/config"
	"github.com/picogrid/hexfleet/pkg/logger"
	"github.com/picogrid/hexfleet/pkg/mapcache"
	"github.com/picogrid/hexfleet/pkg/models"
	"github.com/picogrid/hexfleet/pkg/utils"
)

var geofenceCmd = &cobra.Command{
	Use:     "geofence",
	Aliases: []string{"fence"},
	Short:   "Inspect and edit scenario geofences",
}

var geofenceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the geofences of a scenario",
	RunE:  listGeofences,
}

var geofenceAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a geofence to a scenario file",
	RunE:  addGeofence,
}

var geofenceValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a scenario and optionally check it against a land mask",
	RunE:  validateGeofences,
}

func init() {
	geofenceCmd.PersistentFlags().String("scenario", "", "scenario file (default is the built-in metro scenario)")

	geofenceAddCmd.Flags().String("name", "", "geofence name")
	geofenceAddCmd.Flags().String("type", "", "geofence type (HUB, RESTRICTED, CUSTOMER_ZONE)")
	geofenceAddCmd.Flags().Float64("lat", 0, "center latitude")
	geofenceAddCmd.Flags().Float64("lng", 0, "center longitude")
	geofenceAddCmd.Flags().Float64("radius", 0, "radius in meters")
	geofenceAddCmd.Flags().Bool("inactive", false, "store the geofence as inactive")

	geofenceValidateCmd.Flags().String("world", "", "GeoJSON land mask every point must fall on (- for stdin)")

	geofenceCmd.AddCommand(geofenceListCmd)
	geofenceCmd.AddCommand(geofenceAddCmd)
	geofenceCmd.AddCommand(geofenceValidateCmd)
}

// loadScenario loads the file named by --scenario or the built-in scenario.
func loadScenario(cmd *cobra.Command) (*config.Scenario, error) {
	path, _ := cmd.Flags().GetString("scenario")
	if path == "" {
		return config.DefaultScenario(time.Now()), nil
	}
	return config.LoadScenario(path)
}

func listGeofences(cmd *cobra.Command, args []string) error {
	scenario, err := loadScenario(cmd)
	if err != nil {
		return err
	}

	if len(scenario.Geofences) == 0 {
		fmt.Printf("Scenario %s has no geofences\n", scenario.Name)
		return nil
	}

	table := logger.NewTable("ID", "NAME", "TYPE", "CENTER", "RADIUS", "ACTIVE")
	for _, g := range scenario.Fences(time.Time{}) {
		table.AddRow(
			g.ID,
			g.Name,
			string(g.Type),
			g.Center.String(),
			fmt.Sprintf("%.0fm", g.RadiusMeters),
			strconv.FormatBool(g.Active),
		)
	}
	table.Fprint(os.Stdout)
	return nil
}

func addGeofence(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("scenario")
	if path == "" {
		return fmt.Errorf("--scenario is required")
	}

	scenario, err := config.LoadScenario(path)
	if err != nil {
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		scenario = &config.Scenario{Name: name}
		logger.Infof("Creating new scenario %s", path)
	}

	spec, err := geofenceFromFlags(cmd)
	if err != nil {
		return err
	}

	added, err := scenario.AddGeofence(spec)
	if err != nil {
		return err
	}
	if err := config.SaveScenario(scenario, path); err != nil {
		return err
	}

	logger.Successf("Geofence %s (%s) added to %s", added.Name, added.ID, path)
	return nil
}

// geofenceFromFlags builds a geofence from flags, prompting for whatever is
// missing unless prompts are disabled.
func geofenceFromFlags(cmd *cobra.Command) (config.GeofenceSpec, error) {
	flags := cmd.Flags()
	interactive := !utils.SkipPrompts()

	var spec config.GeofenceSpec
	spec.Name, _ = flags.GetString("name")
	if spec.Name == "" && interactive {
		name, err := utils.PromptInput("Geofence name:", "", true)
		if err != nil {
			return spec, err
		}
		spec.Name = name
	}

	kind, _ := flags.GetString("type")
	if kind == "" && interactive {
		selected, err := utils.PromptSelect("Geofence type:", []string{
			string(models.GeofenceHub),
			string(models.GeofenceRestricted),
			string(models.GeofenceCustomerZone),
		}, string(models.GeofenceCustomerZone))
		if err != nil {
			return spec, err
		}
		kind = selected
	}
	t, err := models.ParseGeofenceType(kind)
	if err != nil {
		return spec, err
	}
	spec.Type = t

	floats := []struct {
		flag   string
		prompt string
		dest   *float64
	}{
		{"lat", "Center latitude:", &spec.Center.Lat},
		{"lng", "Center longitude:", &spec.Center.Lng},
		{"radius", "Radius (meters):", &spec.RadiusMeters},
	}
	for _, f := range floats {
		*f.dest, _ = flags.GetFloat64(f.flag)
		if flags.Changed(f.flag) || !interactive {
			continue
		}
		answer, err := utils.PromptInput(f.prompt, "", true)
		if err != nil {
			return spec, err
		}
		v, err := strconv.ParseFloat(answer, 64)
		if err != nil {
			return spec, fmt.Errorf("%s: %w", f.flag, err)
		}
		*f.dest = v
	}

	if inactive, _ := flags.GetBool("inactive"); inactive {
		active := false
		spec.Active = &active
	}
	return spec, nil
}

func validateGeofences(cmd *cobra.Command, args []string) error {
	scenario, err := loadScenario(cmd)
	if err != nil {
		return err
	}
	logger.Successf("Scenario %s is valid: %d deliveries, %d geofences",
		scenario.Name, len(scenario.Deliveries), len(scenario.Geofences))

	world, _ := cmd.Flags().GetString("world")
	if world == "" {
		return nil
	}

	src := mapcache.FileSource(world)
	if world == "-" {
		src = mapcache.ReaderSource(os.Stdin)
	}
	mask := mapcache.New(src)
	n, err := mask.Polygons()
	if err != nil {
		return fmt.Errorf("failed to load land mask: %w", err)
	}
	if bounds, err := mask.Bounds(); err == nil {
		logger.Debugf("Loaded %d polygons from %s spanning %v", n, world, bounds)
	}

	var offLand []string
	check := func(label string, p models.LatLng) error {
		ok, err := mask.Contains(p)
		if err != nil {
			return err
		}
		if !ok {
			offLand = append(offLand, label)
			logger.Warnf("%s at %s is outside the land mask", label, p)
		}
		return nil
	}

	for _, g := range scenario.Geofences {
		if err := check("geofence "+g.Name, g.Center); err != nil {
			return err
		}
	}
	for _, d := range scenario.Deliveries {
		if err := check("pickup of "+d.ID, d.Pickup.Point); err != nil {
			return err
		}
		if err := check("dropoff of "+d.ID, d.Dropoff.Point); err != nil {
			return err
		}
	}

	if len(offLand) > 0 {
		return fmt.Errorf("%d points are outside the land mask", len(offLand))
	}
	logger.Success("Every point lies on the land mask")
	return nil
}
