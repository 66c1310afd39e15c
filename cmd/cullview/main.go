// Command cullview shows a culling session from above: occluders, moving
// characters, and which enemies the selected character is sent.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/df07/go-corner-culling/pkg/config"
	"github.com/df07/go-corner-culling/pkg/culling"
	"github.com/df07/go-corner-culling/pkg/registry"
	"github.com/df07/go-corner-culling/pkg/scene"
	"github.com/df07/go-corner-culling/pkg/session"
	"github.com/df07/go-corner-culling/pkg/sim"
)

const (
	screenWidth  = 900
	screenHeight = 900
	windowTitle  = "Corner Culling"
)

// Game drives the session one tick per frame and draws it
type Game struct {
	scene    *scene.Scene
	registry *registry.Registry
	culler   *culling.Culler
	session  *session.Session
	world    *sim.World
	view     view
	dt       time.Duration

	paused   bool
	selected int // index into the session characters
	report   session.TickReport
	last     culling.FrameStats
	err      error
}

func newGame(sc *scene.Scene, cfg *config.Config) (*Game, error) {
	reg := registry.New(log.Default())
	if _, err := sc.Populate(reg); err != nil {
		return nil, err
	}
	culler := culling.NewCuller(reg, cfg.Culling, log.Default())
	g := &Game{
		scene:    sc,
		registry: reg,
		culler:   culler,
		session:  session.New(culler, reg, nil, cfg.Session, log.Default()),
		world:    sim.NewWorld(cfg.Sim, sim.SnapshotBlocker{Source: reg}),
		dt:       time.Second / time.Duration(ebiten.TPS()),
	}
	if cfg.Sim.Characters > 0 {
		g.world.Populate()
		g.world.Sync(g.session)
	} else {
		for _, c := range sc.Characters {
			g.session.Upsert(c)
		}
	}
	g.view = view{
		width:      screenWidth,
		height:     screenHeight,
		halfExtent: worldExtent(reg.Snapshot(), g.session.Characters()),
	}
	return g, nil
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.paused = !g.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		g.selected++
	}
	if g.err != nil || g.paused {
		return nil
	}

	if g.world.Len() > 0 {
		g.world.Step(g.dt)
		g.world.Sync(g.session)
	}
	report, err := g.session.Tick(context.Background())
	if err != nil {
		g.err = err
		return nil
	}
	g.report = report
	if report.Culled {
		var total culling.FrameStats
		for _, r := range report.Results {
			total.Add(r.Stats)
		}
		g.last = total
	}
	return nil
}

func (g *Game) selectedCharacter(characters []session.Character) (session.Character, bool) {
	if len(characters) == 0 {
		return session.Character{}, false
	}
	return characters[g.selected%len(characters)], true
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{0x18, 0x18, 0x20, 0xff})

	for _, o := range g.registry.Snapshot().All() {
		g.drawOccluder(screen, o)
	}

	characters := g.session.Characters()
	viewer, ok := g.selectedCharacter(characters)
	for _, c := range characters {
		enemy := ok && c.Team != viewer.Team
		revealed := enemy && g.session.Revealed(viewer.ID, c.ID)
		clr := teamColor(c.Team)
		switch {
		case !c.Alive:
			clr = deadColor
		case enemy && !revealed:
			clr = hiddenColor
		}
		x, y := g.view.toScreen(c.Center)
		if revealed && c.Alive {
			vx, vy := g.view.toScreen(viewer.Center)
			vector.StrokeLine(screen, vx, vy, x, y, 1, sightColor, true)
		}
		vector.DrawFilledCircle(screen, x, y, max(g.view.length(session.CharacterHalfExtents.X), 3), clr, true)
	}
	if ok {
		x, y := g.view.toScreen(viewer.Center)
		vector.StrokeCircle(screen, x, y, max(g.view.length(session.CharacterHalfExtents.X), 3)+4, 2, color.White, true)
	}

	profile := g.culler.Profiler().Profile()
	status := fmt.Sprintf("%s  tick %d  TPS %.0f\n", g.scene.Name, g.report.Tick, ebiten.ActualTPS())
	if ok {
		status += fmt.Sprintf("viewer %d (team %d)  revealed pairs %d\n", viewer.ID, viewer.Team, g.report.Revealed)
	}
	status += fmt.Sprintf("last cull: %d tests, %d hidden, %d cache hits\n", g.last.Candidates, g.last.Hidden, g.last.CacheHits)
	status += fmt.Sprintf("cull time avg %.1fus max %.1fus  hold %d\n", profile.RollingAverage, profile.RollingMax, g.session.TimerIncrement())
	status += "SPACE pause  TAB next viewer  ESC quit"
	if g.paused {
		status += "  [paused]"
	}
	if g.err != nil {
		status += fmt.Sprintf("\nerror: %v", g.err)
	}
	ebitenutil.DebugPrintAt(screen, status, 8, 8)
}

func (g *Game) drawOccluder(screen *ebiten.Image, o *registry.Occluder) {
	clr := occluderColor
	if o.Dynamic {
		clr = dynamicColor
	}

	hull := outline(o)
	if hull == nil {
		bbox := o.BoundingBox()
		x, y := g.view.toScreen(bbox.Center())
		vector.StrokeCircle(screen, x, y, g.view.length(bbox.Size().X/2), 2, clr, true)
		return
	}
	for i, p := range hull {
		q := hull[(i+1)%len(hull)]
		x0, y0 := g.view.toScreen(p)
		x1, y1 := g.view.toScreen(q)
		vector.StrokeLine(screen, x0, y0, x1, y1, 2, clr, true)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	sceneName := flag.String("scene", "arena", "Scene to show: a built-in name or file:<name>")
	sceneDir := flag.String("scenes", "scenes", "Directory of scene files")
	configPath := flag.String("config", "culling.json", "Configuration file (missing file uses defaults)")
	characters := flag.Int("characters", -1, "Simulated characters (0 = the scene's own, -1 = from config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Error loading config: %v", err)
		os.Exit(1)
	}
	if *characters >= 0 {
		cfg.Sim.Characters = *characters
	}
	// One session tick per drawn frame
	cfg.Session.TickRate = ebiten.TPS()

	sc, err := scene.Resolve(*sceneName, *sceneDir)
	if err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}

	game, err := newGame(sc, cfg)
	if err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
	defer game.culler.Close()

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle(windowTitle)
	if err := ebiten.RunGame(game); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
