package database

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/caldera/internal/component"
	"github.com/papapumpkin/caldera/internal/fault"
)

func TestLoad(t *testing.T) {
	t.Parallel()
	db, err := Load("testdata")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := db.Registry.Len(); got != 10 {
		t.Errorf("carriers = %d, want 10", got)
	}
	if got := db.Catalog.Len(); got != 6 {
		t.Errorf("models = %d, want 6", got)
	}

	ch1, ok := db.Catalog.Model("CH1")
	if !ok {
		t.Fatal("CH1 missing from catalog")
	}
	if got := len(ch1.Rows()); got != 2 {
		t.Errorf("CH1 rows = %d, want 2", got)
	}
	if diff := cmp.Diff([]string{"T10W"}, ch1.MainCarriers()); diff != "" {
		t.Errorf("CH1 main carriers mismatch (-want +got):\n%s", diff)
	}

	ng, err := db.Registry.Lookup("NG")
	if err != nil {
		t.Fatalf("Lookup NG: %v", err)
	}
	if ng.HasQualifier() || ng.Feedstock != "" {
		t.Errorf("NG = %+v, want no qualifier and no feedstock", ng)
	}

	tests := []struct {
		hour int
		want float64
	}{
		{hour: 2, want: 0.15},
		{hour: 9, want: 0.3},
		{hour: 24 + 9, want: 0.3},
	}
	for _, tt := range tests {
		got, err := db.Registry.Price("E400AC", tt.hour)
		if err != nil {
			t.Fatalf("Price: %v", err)
		}
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Price(E400AC, %d) = %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadCarriersRejectsBadTables(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "missing columns",
			content: "code,type\nT10W,thermal\n",
			wantMsg: "subtype, mean_qual",
		},
		{
			name:    "bad number",
			content: "code,type,subtype,mean_qual\nT10W,thermal,water,ten\n",
			wantMsg: "mean_qual",
		},
		{
			name:    "empty file",
			content: "",
			wantMsg: "no header row",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), CarriersFile)
			writeFile(t, path, tt.content)
			_, err := LoadCarriers(path)
			if !errors.Is(err, fault.ErrConfiguration) {
				t.Fatalf("err = %v, want ErrConfiguration", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("err = %q, want mention of %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadCarriersDashIsUndefined(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), CarriersFile)
	writeFile(t, path, "code,type,subtype,mean_qual,unit_cost,feedstock\nNG,combustible,fossil,-,-,-\n")
	rows, err := LoadCarriers(path)
	if err != nil {
		t.Fatalf("LoadCarriers: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if !math.IsNaN(rows[0].MeanQual) || rows[0].UnitCost != 0 || rows[0].Feedstock != "" {
		t.Errorf("row = %+v, want NaN qualifier, zero cost, no feedstock", rows[0])
	}
}

func TestLoadComponentsUnknownTechnology(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "XYZ.csv"), "code,cap_min,cap_max,a,b,c,d,e,lt_yr,o&m_%,ir_%\nX1,1,2,0,0,0,0,0,20,1,5\n")
	_, err := LoadComponents(dir)
	if !errors.Is(err, fault.ErrConfiguration) || !errors.Is(err, component.ErrUnknownTechnology) {
		t.Errorf("err = %v, want ErrConfiguration wrapping ErrUnknownTechnology", err)
	}
}

func TestLoadComponentsEmptyDirectory(t *testing.T) {
	t.Parallel()
	_, err := LoadComponents(t.TempDir())
	if !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestLoadFeedstocksWrongLength(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "GRID.csv"), "hour,buy,sell,ghg\n0,0.1,0.05,0.1\n")
	_, err := LoadFeedstocks(dir)
	if !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestLoadFeedstocksMissingDirectory(t *testing.T) {
	t.Parallel()
	got, err := LoadFeedstocks(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("LoadFeedstocks: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("feedstocks = %v, want none", got)
	}
}

// copyTree copies the testdata database into a scratch directory.
func copyTree(t *testing.T, src, dst string) {
	t.Helper()
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(src, path)
		if d.IsDir() {
			return os.MkdirAll(filepath.Join(dst, rel), 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dst, rel), data, 0o644)
	})
	if err != nil {
		t.Fatalf("copy testdata: %v", err)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	copyTree(t, "testdata", dir)

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Debounce = 20 * time.Millisecond
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	vcc := filepath.Join(dir, ComponentsDir, "VCC.csv")
	data, err := os.ReadFile(vcc)
	if err != nil {
		t.Fatal(err)
	}
	data = append(data, []byte("CH3,air-cooled,10,500,900,9,1,0,0,15,2,5,3,10,35,400\n")...)
	if err := os.WriteFile(vcc, data, 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-w.Reloads:
		if r.Err != nil {
			t.Fatalf("reload: %v", r.Err)
		}
		if _, ok := r.Database.Catalog.Model("CH3"); !ok {
			t.Error("reloaded catalog misses CH3")
		}
		if diff := cmp.Diff([]string{vcc}, r.Files); diff != "" {
			t.Errorf("files mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within 5s")
	}
}

func TestWatcherStopsWithUnreadReloads(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	copyTree(t, "testdata", dir)

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Debounce = 20 * time.Millisecond
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for range cap(w.reloads) {
		w.reload(nil)
	}
	writeFile(t, filepath.Join(dir, CarriersFile), "code,type\n")
	time.Sleep(200 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on a full Reloads channel")
	}
}

func TestWatcherReportsBrokenTables(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	copyTree(t, "testdata", dir)

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Debounce = 20 * time.Millisecond
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeFile(t, filepath.Join(dir, CarriersFile), "code,type\n")

	select {
	case r := <-w.Reloads:
		if !errors.Is(r.Err, fault.ErrConfiguration) {
			t.Errorf("err = %v, want ErrConfiguration", r.Err)
		}
		if r.Database != nil {
			t.Error("broken reload carried a database")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within 5s")
	}
}
