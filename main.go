package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/df07/go-corner-culling/pkg/config"
	"github.com/df07/go-corner-culling/pkg/console"
	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/culling"
	"github.com/df07/go-corner-culling/pkg/registry"
	"github.com/df07/go-corner-culling/pkg/scene"
	"github.com/df07/go-corner-culling/pkg/store"
)

// BenchReport is the outcome of culling one scene repeatedly
type BenchReport struct {
	Scene   string             `json:"scene"`
	Frames  int                `json:"frames"`
	Stats   culling.FrameStats `json:"stats"`
	Profile culling.Profile    `json:"profile"`
}

func main() {
	// Parse command line flags
	sceneList := flag.String("scene", "all", "Comma separated scenes: built-in names, file:<name>, or 'all'")
	sceneDir := flag.String("scenes", "scenes", "Directory of scene files")
	configPath := flag.String("config", "culling.json", "Configuration file (missing file uses defaults)")
	frames := flag.Int("frames", 1000, "Frames to cull per scene")
	workers := flag.Int("workers", -1, "Worker count (0 = CPU count, -1 = from config)")
	budget := flag.Duration("budget", -1, "Frame budget (0 = none, -1 = from config)")
	parallel := flag.Int("parallel", 1, "Scenes benchmarked at once")
	save := flag.Bool("save", false, "Write a JSON report to output/<scene>/")
	interactive := flag.Bool("console", false, "Edit the first scene's occluders from stdin while it is culled")
	dbPath := flag.String("db", "", "SQLite map store for -console (empty disables save/load)")
	help := flag.Bool("help", false, "Show help information")
	flag.Parse()

	// Show help if requested
	if *help {
		fmt.Println("Corner Culling Benchmark")
		fmt.Println("Usage: cullbench [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("Available scenes:")
		for _, name := range scene.BuiltinNames() {
			fmt.Printf("  %s\n", name)
		}
		fmt.Println("  file:<name> - scenes/<name>.json")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *workers >= 0 {
		cfg.Culling.Workers = *workers
	}
	if *budget >= 0 {
		cfg.Culling.FrameBudget = core.Duration(*budget)
	}

	names := parseSceneList(*sceneList)
	scenes := make([]*scene.Scene, 0, len(names))
	for _, name := range names {
		sc, err := createScene(name, *sceneDir)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		scenes = append(scenes, sc)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *interactive {
		if err := runConsole(ctx, scenes[0], cfg, *dbPath); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Culling %d scene(s), %d frames each...\n", len(scenes), *frames)
	reports := make([]BenchReport, len(scenes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*parallel, 1))
	for i, sc := range scenes {
		g.Go(func() error {
			report, err := benchScene(gctx, sc, cfg.Culling, *frames)
			if err != nil {
				return fmt.Errorf("scene %s: %w", sc.Name, err)
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	for _, r := range reports {
		printReport(r)
		if *save {
			filename, err := saveReport(r)
			if err != nil {
				fmt.Printf("Error saving report: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("  report saved as %s\n", filename)
		}
	}
}

// parseSceneList splits a comma separated scene list; "all" selects every
// built-in scene
func parseSceneList(list string) []string {
	if list == "all" {
		return scene.BuiltinNames()
	}
	var names []string
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// createScene resolves a built-in scene or a scene file from dir
func createScene(name, dir string) (*scene.Scene, error) {
	if name == "" {
		return nil, fmt.Errorf("empty scene name")
	}
	return scene.Resolve(name, dir)
}

// createOutputDir returns the report directory of a scene
func createOutputDir(sceneName string) string {
	return filepath.Join("output", strings.TrimPrefix(sceneName, "file:"))
}

// benchScene culls the scene viewer's frame the given number of times
func benchScene(ctx context.Context, sc *scene.Scene, cfg culling.Config, frames int) (BenchReport, error) {
	report := BenchReport{Scene: sc.Name, Frames: frames}

	reg := registry.New(culling.NewDefaultLogger())
	if _, err := sc.Populate(reg); err != nil {
		return report, err
	}
	culler := culling.NewCuller(reg, cfg, culling.NewDefaultLogger())
	defer culler.Close()

	for i := range frames {
		result, err := culler.Cull(ctx, sc.Frame(uint64(i+1)))
		if err != nil {
			return report, err
		}
		report.Stats.Add(result.Stats)
	}
	report.Profile = culler.Profiler().Profile()
	return report, nil
}

func printReport(r BenchReport) {
	s := r.Stats
	fmt.Printf("%s: %d frames, %d candidate tests\n", r.Scene, r.Frames, s.Candidates)
	fmt.Printf("  visible %d, hidden %d (frustum %d), timed out %d\n", s.Visible, s.Hidden, s.FrustumCulled, s.TimedOut)
	fmt.Printf("  cache hits %d, occluder tests %d, skipped occluders %d\n", s.CacheHits, s.OccluderTests, s.SkippedOccluders)
	fmt.Printf("  avg %.1fus, rolling avg %.1fus, rolling max %.1fus, p95 %.1fus\n",
		r.Profile.TotalAverage, r.Profile.RollingAverage, r.Profile.RollingMax, r.Profile.RollingP95)
}

// saveReport writes the report to a timestamped JSON file
func saveReport(r BenchReport) (string, error) {
	outputDir := createOutputDir(r.Scene)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(outputDir, fmt.Sprintf("bench_%s.json", timestamp))

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return filename, os.WriteFile(filename, data, 0644)
}

// runConsole reads occluder commands from stdin while the scene is culled
// at the configured frame rate
func runConsole(ctx context.Context, sc *scene.Scene, cfg *config.Config, dbPath string) error {
	reg := registry.New(culling.NewDefaultLogger())
	if _, err := sc.Populate(reg); err != nil {
		return err
	}
	culler := culling.NewCuller(reg, cfg.Culling, culling.NewDefaultLogger())
	defer culler.Close()

	var st console.MapStore
	if dbPath != "" {
		s, err := store.Open(dbPath, nil)
		if err != nil {
			return err
		}
		defer s.Close()
		st = s
	}

	fmt.Printf("Scene %s loaded, %d occluders. Type help for commands.\n", sc.Name, reg.Snapshot().Len())

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Second / time.Duration(cfg.Server.FrameRate))
		defer ticker.Stop()
		for frame := uint64(1); ; frame++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				culler.Cull(ctx, sc.Frame(frame))
			}
		}
	}()

	err := console.New(reg, st, culler.Profiler(), os.Stdout).Run(ctx, os.Stdin, true)
	cancel()
	wg.Wait()
	return err
}
