// Command meshlog summarizes a run's compressed mesh event log and,
// optionally, the runs recorded in the sqlite index.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"voxelbyte/internal/persistence/indexdb"
	persistlog "voxelbyte/internal/persistence/log"
)

func main() {
	var (
		eventsDir = flag.String("events", "", "dir containing meshes-*.jsonl.zst")
		dbPath    = flag.String("db", "", "sqlite index to list runs from (optional)")
		top       = flag.Int("top", 5, "show the N slowest chunks")
		noColor   = flag.Bool("no_color", false, "disable colored output")
	)
	flag.Parse()
	if *noColor {
		color.NoColor = true
	}

	if *eventsDir == "" && *dbPath == "" {
		fmt.Fprintln(os.Stderr, "missing -events or -db")
		os.Exit(2)
	}

	if *eventsDir != "" {
		files, err := listMeshFiles(*eventsDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list events:", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			fmt.Fprintln(os.Stderr, "no mesh files found in", *eventsDir)
			os.Exit(1)
		}
		var sum summary
		for _, path := range files {
			if err := sum.addFile(path); err != nil {
				fmt.Fprintln(os.Stderr, "read:", err)
				os.Exit(1)
			}
		}
		sum.print(os.Stdout, *top)
	}

	if *dbPath != "" {
		if err := printRuns(*dbPath); err != nil {
			fmt.Fprintln(os.Stderr, "index:", err)
			os.Exit(1)
		}
	}
}

func listMeshFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "meshes-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

type summary struct {
	runs     map[string]int
	chunks   int
	empty    int
	vertices int64
	indices  int64
	quads    int64
	totalUS  int64
	first    time.Time
	last     time.Time
	slowest  []persistlog.MeshLine
}

func (s *summary) addFile(path string) error {
	return persistlog.ReadJSONL(path, func(line []byte) error {
		var ml persistlog.MeshLine
		if err := json.Unmarshal(line, &ml); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		s.add(ml)
		return nil
	})
}

func (s *summary) add(ml persistlog.MeshLine) {
	if s.runs == nil {
		s.runs = map[string]int{}
	}
	s.runs[ml.RunID]++
	s.chunks++
	if ml.Quads == 0 {
		s.empty++
	}
	s.vertices += int64(ml.Vertices)
	s.indices += int64(ml.Indices)
	s.quads += int64(ml.Quads)
	s.totalUS += ml.DurationUS
	if at, err := time.Parse(time.RFC3339Nano, ml.MeshedAt); err == nil {
		if s.first.IsZero() || at.Before(s.first) {
			s.first = at
		}
		if at.After(s.last) {
			s.last = at
		}
	}
	s.slowest = append(s.slowest, ml)
}

func (s *summary) avgUS() float64 {
	if s.chunks == 0 {
		return 0
	}
	return float64(s.totalUS) / float64(s.chunks)
}

func (s *summary) print(w io.Writer, top int) {
	head := color.New(color.FgCyan, color.Bold).SprintFunc()
	num := color.New(color.FgGreen).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "%s runs=%s chunks=%s empty=%s\n", head("meshes"), num(len(s.runs)), num(s.chunks), warn(s.empty))
	fmt.Fprintf(w, "  vertices=%s indices=%s quads=%s\n", num(s.vertices), num(s.indices), num(s.quads))
	fmt.Fprintf(w, "  avg=%sus span=%s\n", num(fmt.Sprintf("%.1f", s.avgUS())), s.last.Sub(s.first).Round(time.Millisecond))

	if top <= 0 || len(s.slowest) == 0 {
		return
	}
	sort.SliceStable(s.slowest, func(i, j int) bool { return s.slowest[i].DurationUS > s.slowest[j].DurationUS })
	if top > len(s.slowest) {
		top = len(s.slowest)
	}
	fmt.Fprintf(w, "%s\n", head("slowest"))
	for _, ml := range s.slowest[:top] {
		fmt.Fprintf(w, "  chunk=(%d,%d) quads=%d took=%s\n", ml.CX, ml.CZ, ml.Quads, warn(fmt.Sprintf("%dus", ml.DurationUS)))
	}
}

func printRuns(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	idx, err := indexdb.OpenSQLite(path, "meshlog", indexdb.Options{})
	if err != nil {
		return err
	}
	defer idx.Close()

	runs, err := idx.Runs()
	if err != nil {
		return err
	}
	head := color.New(color.FgCyan, color.Bold).SprintFunc()
	num := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s count=%s\n", head("runs"), num(len(runs)))
	for _, r := range runs {
		fmt.Printf("  %s started=%s chunks=%s quads=%s avg=%.1fus\n", r.RunID, r.StartedAt, num(r.Chunks), num(r.Quads), r.AvgUS)
	}
	return nil
}
