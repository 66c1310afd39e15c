// Package console edits the occluder registry from text commands
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/culling"
	"github.com/df07/go-corner-culling/pkg/geometry"
	"github.com/df07/go-corner-culling/pkg/registry"
	"github.com/df07/go-corner-culling/pkg/store"
	"github.com/google/shlex"
)

var (
	// ErrUnknownCommand is returned for commands the console does not know
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage is returned when a command gets the wrong arguments
	ErrUsage = errors.New("usage")
	// ErrNoStore is returned by save and load without a map store
	ErrNoStore = errors.New("no map store")
)

// MapStore is the part of the map store the console uses
type MapStore interface {
	SaveMap(name string, records []registry.Record) error
	LoadMap(name string) ([]registry.Record, error)
	ListMaps() ([]store.MapInfo, error)
}

type command struct {
	usage string
	help  string
	run   func(c *Console, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"box":    {"box X Y Z HX HY HZ [YAW] [-d]", "add a box with half extents, turned by YAW radians", (*Console).box},
		"wall":   {"wall X Y Z WIDTH HEIGHT [YAW] [-d]", "add an upright panel", (*Console).wall},
		"sphere": {"sphere X Y Z RADIUS [-d]", "add a sphere", (*Console).sphere},
		"rm":     {"rm ID", "remove an occluder", (*Console).rm},
		"mv":     {"mv ID X Y Z [YAW]", "move a dynamic occluder", (*Console).mv},
		"ls":     {"ls", "list committed occluders", (*Console).ls},
		"commit": {"commit", "publish queued changes", (*Console).commit},
		"save":   {"save NAME", "save the committed occluders as a map", (*Console).save},
		"load":   {"load NAME", "replace the occluders with a saved map", (*Console).load},
		"maps":   {"maps", "list saved maps", (*Console).maps},
		"stats":  {"stats", "show registry and culling statistics", (*Console).stats},
		"help":   {"help", "show this help", (*Console).help},
	}
}

// Console executes commands against a registry
type Console struct {
	reg      *registry.Registry
	store    MapStore          // optional
	profiler *culling.Profiler // optional
	out      io.Writer
}

// New creates a console. store and profiler may be nil.
func New(reg *registry.Registry, store MapStore, profiler *culling.Profiler, out io.Writer) *Console {
	return &Console{reg: reg, store: store, profiler: profiler, out: out}
}

// Exec runs one command line. Blank lines and # comments are ignored.
func (c *Console) Exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse %q: %w", line, err)
	}
	if len(args) == 0 {
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
	return cmd.run(c, args[1:])
}

// Run executes commands read from r until it is exhausted or ctx is done.
// Command errors are printed and do not stop the loop.
func (c *Console) Run(ctx context.Context, r io.Reader, prompt bool) error {
	scanner := bufio.NewScanner(r)
	for {
		if prompt {
			fmt.Fprint(c.out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Exec(scanner.Text()); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

func usage(name string) error {
	return fmt.Errorf("%w: %s", ErrUsage, commands[name].usage)
}

// splitFlags separates the dynamic flag from positional arguments
func splitFlags(args []string) (positional []string, dynamic bool) {
	for _, a := range args {
		if a == "-d" || a == "--dynamic" {
			dynamic = true
			continue
		}
		positional = append(positional, a)
	}
	return positional, dynamic
}

func parseFloats(args []string) ([]float64, error) {
	values := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func parseID(arg string) (registry.ID, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	return registry.ID(id), err
}

func (c *Console) register(desc geometry.Descriptor, transform geometry.Transform, dynamic bool) error {
	id, err := c.reg.Register(desc, transform, dynamic)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "queued %s %d\n", desc.Kind, id)
	return nil
}

func (c *Console) box(args []string) error {
	args, dynamic := splitFlags(args)
	v, err := parseFloats(args)
	if err != nil || (len(v) != 6 && len(v) != 7) {
		return usage("box")
	}
	transform := geometry.Transform{Translation: core.NewVec3(v[0], v[1], v[2])}
	if len(v) == 7 {
		transform.Rotation.Z = v[6]
	}
	return c.register(geometry.BoxDescriptor(core.NewVec3(v[3], v[4], v[5])), transform, dynamic)
}

func (c *Console) wall(args []string) error {
	args, dynamic := splitFlags(args)
	v, err := parseFloats(args)
	if err != nil || (len(v) != 5 && len(v) != 6) {
		return usage("wall")
	}
	transform := geometry.Transform{Translation: core.NewVec3(v[0], v[1], v[2])}
	if len(v) == 6 {
		transform.Rotation.Z = v[5]
	}
	return c.register(geometry.WallDescriptor(v[3], v[4]), transform, dynamic)
}

func (c *Console) sphere(args []string) error {
	args, dynamic := splitFlags(args)
	v, err := parseFloats(args)
	if err != nil || len(v) != 4 {
		return usage("sphere")
	}
	return c.register(geometry.SphereDescriptor(v[3]), geometry.Translate(core.NewVec3(v[0], v[1], v[2])), dynamic)
}

func (c *Console) rm(args []string) error {
	if len(args) != 1 {
		return usage("rm")
	}
	id, err := parseID(args[0])
	if err != nil {
		return usage("rm")
	}
	if err := c.reg.Unregister(id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "queued removal of %d\n", id)
	return nil
}

func (c *Console) mv(args []string) error {
	if len(args) != 4 && len(args) != 5 {
		return usage("mv")
	}
	id, err := parseID(args[0])
	if err != nil {
		return usage("mv")
	}
	v, err := parseFloats(args[1:])
	if err != nil {
		return usage("mv")
	}

	transform := geometry.Identity()
	if o, ok := c.reg.Snapshot().Get(id); ok {
		transform = o.Transform
	}
	transform.Translation = core.NewVec3(v[0], v[1], v[2])
	if len(v) == 4 {
		transform.Rotation.Z = v[3]
	}
	if err := c.reg.Move(id, transform); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "queued move of %d\n", id)
	return nil
}

func (c *Console) ls(args []string) error {
	snap := c.reg.Snapshot()
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tDYNAMIC\tCENTER")
	for _, o := range snap.All() {
		center := o.Shape.Centroid()
		fmt.Fprintf(w, "%d\t%s\t%v\t(%.1f, %.1f, %.1f)\n", o.ID, o.Descriptor.Kind, o.Dynamic, center.X, center.Y, center.Z)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if pending := c.reg.Pending(); pending > 0 {
		fmt.Fprintf(c.out, "%d change(s) pending commit\n", pending)
	}
	return nil
}

func (c *Console) commit(args []string) error {
	snap := c.reg.Commit()
	fmt.Fprintf(c.out, "committed version %d: %d occluder(s)\n", snap.Version, snap.Len())
	return nil
}

func (c *Console) save(args []string) error {
	if len(args) != 1 {
		return usage("save")
	}
	if c.store == nil {
		return ErrNoStore
	}
	records := c.reg.Snapshot().Records()
	if err := c.store.SaveMap(args[0], records); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "saved %d occluder(s) to %q\n", len(records), args[0])
	return nil
}

func (c *Console) load(args []string) error {
	if len(args) != 1 {
		return usage("load")
	}
	if c.store == nil {
		return ErrNoStore
	}
	records, err := c.store.LoadMap(args[0])
	if err != nil {
		return err
	}
	skipped := c.reg.Restore(records)
	fmt.Fprintf(c.out, "loaded %d occluder(s) from %q", len(records)-skipped, args[0])
	if skipped > 0 {
		fmt.Fprintf(c.out, ", skipped %d invalid", skipped)
	}
	fmt.Fprintln(c.out, "; commit to publish")
	return nil
}

func (c *Console) maps(args []string) error {
	if c.store == nil {
		return ErrNoStore
	}
	maps, err := c.store.ListMaps()
	if err != nil {
		return err
	}
	for _, m := range maps {
		fmt.Fprintf(c.out, "%s\t%d occluder(s)\n", m.Name, m.Occluders)
	}
	return nil
}

func (c *Console) stats(args []string) error {
	snap := c.reg.Snapshot()
	fmt.Fprintf(c.out, "snapshot version %d: %d occluder(s), %d pending\n", snap.Version, snap.Len(), c.reg.Pending())
	if c.profiler != nil {
		p := c.profiler.Profile()
		fmt.Fprintf(c.out, "culled %d frame(s): avg %.1fus, rolling avg %.1fus, rolling max %.1fus, p95 %.1fus\n",
			p.Frames, p.TotalAverage, p.RollingAverage, p.RollingMax, p.RollingP95)
	}
	return nil
}

func (c *Console) help(args []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", commands[name].usage, commands[name].help)
	}
	return w.Flush()
}
