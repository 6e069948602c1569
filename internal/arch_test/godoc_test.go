package arch_test

import (
	"go/ast"
	"go/token"
	"strings"
	"testing"
)

// TestExportedSymbolsHaveGoDoc requires a doc comment beginning with the
// symbol name on every exported type, function and method. Grouped const and
// var blocks may document the group instead of each name.
func TestExportedSymbolsHaveGoDoc(t *testing.T) {
	t.Parallel()

	for _, pkg := range packages(t) {
		t.Run(pkg, func(t *testing.T) {
			t.Parallel()
			for _, f := range parse(t, pkg) {
				for _, name := range undocumented(f) {
					t.Errorf("%s: exported %s has no GoDoc comment", pkg, name)
				}
			}
		})
	}
}

func undocumented(f *ast.File) []string {
	var missing []string
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if !d.Name.IsExported() || (d.Recv != nil && !exportedReceiver(d.Recv)) {
				continue
			}
			if !startsWith(d.Doc, d.Name.Name) {
				missing = append(missing, d.Name.Name)
			}
		case *ast.GenDecl:
			grouped := len(d.Specs) > 1 && d.Doc != nil
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					if s.Name.IsExported() && !startsWith(s.Doc, s.Name.Name) && !startsWith(d.Doc, s.Name.Name) {
						missing = append(missing, s.Name.Name)
					}
				case *ast.ValueSpec:
					for _, n := range s.Names {
						if !n.IsExported() || grouped || s.Comment != nil {
							continue
						}
						if !startsWith(s.Doc, n.Name) && !startsWith(d.Doc, n.Name) {
							missing = append(missing, n.Name)
						}
					}
				}
			}
		}
	}
	return missing
}

func startsWith(doc *ast.CommentGroup, name string) bool {
	return doc != nil && strings.HasPrefix(strings.TrimSpace(doc.Text()), name)
}

func exportedReceiver(recv *ast.FieldList) bool {
	if len(recv.List) == 0 {
		return false
	}
	expr := recv.List[0].Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	switch x := expr.(type) {
	case *ast.IndexExpr:
		expr = x.X
	case *ast.IndexListExpr:
		expr = x.X
	}
	id, ok := expr.(*ast.Ident)
	return ok && token.IsExported(id.Name)
}
