package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/caldera/internal/carrier"
)

var carriersCmd = &cobra.Command{
	Use:   "carriers",
	Short: "List the energy carriers of the database",
	Long: `Lists the carriers of the database, optionally filtered by category and
subtype. With --near, prints the carrier whose qualifier (temperature or
voltage) is closest to the given value instead.`,
	Args: cobra.NoArgs,
	RunE: runCarriers,
}

func init() {
	carriersCmd.Flags().String("category", "", "thermal, electrical, combustible or radiation")
	carriersCmd.Flags().String("subtype", "", "carrier subtype, e.g. water or AC")
	carriersCmd.Flags().Float64("near", 0, "find the carrier nearest to this temperature or voltage")
	rootCmd.AddCommand(carriersCmd)
}

func runCarriers(cmd *cobra.Command, _ []string) error {
	category, _ := cmd.Flags().GetString("category")
	subtype, _ := cmd.Flags().GetString("subtype")
	near, _ := cmd.Flags().GetFloat64("near")

	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.close()

	db, err := sess.loadDatabase(sess.cfg.Database)
	if err != nil {
		return err
	}
	reg := db.Registry

	if cmd.Flags().Changed("near") {
		code, err := nearest(reg, carrier.Category(category), subtype, near)
		if err != nil {
			return err
		}
		c, err := reg.Lookup(code)
		if err != nil {
			return err
		}
		sess.printer.Carriers([]carrier.Carrier{c})
		return nil
	}

	var rows []carrier.Carrier
	for _, c := range reg.All() {
		if category != "" && string(c.Category) != category {
			continue
		}
		if subtype != "" && c.Subtype != subtype {
			continue
		}
		rows = append(rows, c)
	}
	sess.printer.Carriers(rows)
	return nil
}

func nearest(reg *carrier.Registry, category carrier.Category, subtype string, value float64) (string, error) {
	switch category {
	case carrier.Thermal:
		if subtype == "" {
			subtype = "water"
		}
		return reg.ForTemperature(subtype, value)
	case carrier.Electrical:
		if subtype == "" {
			subtype = "AC"
		}
		return reg.ForVoltage(subtype, value)
	}
	return "", fmt.Errorf("--near needs --category thermal or electrical, got %q", category)
}
