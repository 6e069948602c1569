package ui

import (
	"fmt"
	"math"

	"github.com/papapumpkin/caldera/internal/carrier"
	"github.com/papapumpkin/caldera/internal/database"
)

// Carriers prints carrier rows as a table.
func (p *Printer) Carriers(rows []carrier.Carrier) {
	fmt.Fprintln(p.w, styleHeading.Render(fmt.Sprintf("  %-10s %-12s %-8s %10s %10s %10s  %s",
		"code", "type", "subtype", "qualifier", "cost", "ghg", "description")))
	for _, c := range rows {
		qual := "-"
		if !math.IsNaN(c.MeanQual) {
			qual = fmt.Sprintf("%g %s", c.MeanQual, c.QualifierUnit)
		}
		fmt.Fprintf(p.w, "  %s %-12s %-8s %10s %10.3f %10.3f  %s\n",
			styleCode.Render(fmt.Sprintf("%-10s", c.Code)), c.Category, c.Subtype, qual, c.UnitCost, c.UnitGHG, styleMuted.Render(c.Description))
	}
}

// Database prints a summary of a loaded database.
func (p *Printer) Database(db *database.Database) {
	p.Success(fmt.Sprintf("database %s: %d carriers, %d models", db.Dir, db.Registry.Len(), db.Catalog.Len()))
}

// Reload prints the outcome of a database reload.
func (p *Printer) Reload(r database.Reload) {
	if r.Err != nil {
		p.Error(fmt.Sprintf("reload after %d change(s): %v", len(r.Files), r.Err))
		return
	}
	p.Info(fmt.Sprintf("reloaded after %d change(s)", len(r.Files)))
	p.Database(r.Database)
}
