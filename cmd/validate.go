package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [case.toml...]",
	Short: "Check the database and any case files",
	Long: `Loads the configured database and reports its size. Each case file given
is parsed and its inputs checked against the database the case refers to.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, args []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer sess.close()

	ok := true
	if db, err := sess.loadDatabase(sess.cfg.Database); err != nil {
		sess.printer.Error(fmt.Sprintf("database %s: %v", sess.cfg.Database, err))
		ok = false
	} else {
		sess.printer.Database(db)
	}

	for _, path := range args {
		if err := sess.validateCase(path); err != nil {
			sess.printer.Error(fmt.Sprintf("%s: %v", path, err))
			ok = false
			continue
		}
		sess.printer.Success("case " + path)
	}

	if !ok {
		return fmt.Errorf("validation failed")
	}
	return nil
}

func (s *session) validateCase(path string) error {
	c, db, err := s.loadCase(path)
	if err != nil {
		return err
	}
	in, err := c.Inputs(db.Catalog)
	if err != nil {
		return err
	}
	for p, codes := range in.Selection {
		for _, code := range codes {
			if _, ok := db.Catalog.Model(code); !ok {
				return fmt.Errorf("%s selection names unknown model %s", p, code)
			}
		}
	}
	for code := range in.Potentials {
		if !db.Registry.Has(code) {
			return fmt.Errorf("potential carrier %s is not registered", code)
		}
	}
	if !db.Registry.Has(c.Demand.Carrier) {
		return fmt.Errorf("demand carrier %s is not registered", c.Demand.Carrier)
	}
	return nil
}
