// pxlprobe prints what every configured reaction currently sees: the sampled
// color, its distance from the target and whether the reaction would fire.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ConserveLee/pxlreact/internal/config"
	"github.com/ConserveLee/pxlreact/internal/engine"
	"github.com/ConserveLee/pxlreact/internal/engine/screen"
)

func main() {
	cfgPath := flag.String("config", config.Path(), "configuration file")
	imagePath := flag.String("image", "", "sample a PNG screenshot instead of the live screen")
	originX := flag.Int("x", 0, "screen X of the screenshot's left edge")
	originY := flag.Int("y", 0, "screen Y of the screenshot's top edge")
	pointer := flag.Bool("pointer", false, "report the color under the pointer after the settle delay")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var sampler screen.Sampler
	if *imagePath != "" {
		img, err := loadImage(*imagePath)
		if err != nil {
			fmt.Printf("Failed to load screenshot: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Screenshot size: %dx%d at (%d, %d)\n", img.Bounds().Dx(), img.Bounds().Dy(), *originX, *originY)
		sampler = screen.ImageSampler{Img: img, Origin: image.Pt(*originX, *originY)}
	} else {
		reader := screen.NewReader()
		defer reader.Close()
		sampler = reader
	}

	if *pointer {
		p := screen.RobotPointer{}.Position()
		fmt.Printf("Pointer locked at (%d, %d), waiting %s...\n", p.X, p.Y, cfg.SettleDelay)
		time.Sleep(cfg.SettleDelay)
		c, ok := sampler.Sample(p)
		if !ok {
			fmt.Println("Pointer location unreadable")
			os.Exit(1)
		}
		fmt.Println(screen.Report(p, c))
		return
	}

	catalog, err := engine.NewCatalog(cfg.Actions)
	if err != nil {
		fmt.Printf("Invalid actions: %v\n", err)
		os.Exit(1)
	}
	registry, err := engine.LoadRegistry(cfg.Reactions, catalog, engine.ResolveBounds(cfg.Bounds))
	if err != nil {
		fmt.Printf("Invalid reactions: %v\n", err)
		os.Exit(1)
	}

	matcher := screen.NewMatcher(cfg.Tolerance, cfg.IgnoredDeltas)
	fmt.Printf("Bounds %v, tolerance %s, %d reactions\n", registry.Bounds(), humanize.Comma(int64(cfg.Tolerance)), len(registry.Names()))

	for _, name := range registry.Names() {
		def, _ := registry.Resolve(name)
		fmt.Printf("\n=== %s (%s, cooldown %s) ===\n", def.Name, def.Mode, def.Cooldown)
		fmt.Printf("  target  %s\n", screen.Report(def.Location, def.Target))

		c, ok := sampler.Sample(def.Location)
		if !ok {
			fmt.Println("  current unreadable")
			continue
		}
		d := screen.Distance(c, def.Target)
		fmt.Printf("  current %s\n", screen.Report(def.Location, c))

		fire := false
		switch def.Mode {
		case engine.TriggerIfDifferent:
			fire = matcher.Differs(c, def.Target)
		case engine.TriggerIfEqual:
			fire = matcher.Similar(c, def.Target)
		}
		note := ""
		if matcher.Ignored(d) {
			note = " (ignored flicker)"
		}
		fmt.Printf("  distance %s%s -> would trigger: %v\n", humanize.Comma(int64(d)), note, fire)
	}
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}
