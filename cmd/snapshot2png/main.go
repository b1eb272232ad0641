// Command snapshot2png renders one coherence.System tick-by-tick run to a
// PNG grid: one row per processor, one cell per cache block, colored by
// MOESI state and labeled with its address and data word. It exists to
// turn a run into a shareable artifact instead of a terminal dump, the
// same role font2rgba.go plays converting a font asset into a usable raw
// form for the rest of the teacher's tree.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/moesi-sim/coherence"
)

const (
	cellWidth  = 96
	cellHeight = 28
	margin     = 8
)

var stateColor = map[string]color.RGBA{
	"M": {0xd9, 0x4f, 0x4f, 0xff},
	"O": {0xd9, 0x9a, 0x4f, 0xff},
	"E": {0x4f, 0x8a, 0xd9, 0xff},
	"S": {0x4f, 0xd9, 0x7a, 0xff},
	"I": {0x3a, 0x3a, 0x3a, 0xff},
}

func main() {
	nProcessors := flag.Int("processors", 4, "number of processors")
	memorySize := flag.Int("memory", 16, "shared memory size in words")
	ticks := flag.Int("ticks", 1, "number of synchronous ticks to run before rendering")
	outPath := flag.String("o", "snapshot.png", "output PNG path")
	flag.Parse()

	sys, err := coherence.New(*nProcessors, *memorySize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	for i := 0; i < *ticks; i++ {
		sys.Step()
	}

	snap := sys.Snapshot()
	img := render(snap)

	f, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating %s: %v\n", *outPath, err)
		os.Exit(1)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		fmt.Fprintf(os.Stderr, "error encoding png: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *outPath)
}

func render(snap coherence.Snapshot) *image.RGBA {
	rows := len(snap.Processors)
	cols := 0
	for _, p := range snap.Processors {
		if len(p.Cache) > cols {
			cols = len(p.Cache)
		}
	}
	if cols == 0 {
		cols = 1
	}

	w := margin*2 + cols*cellWidth
	h := margin*2 + rows*cellHeight
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{0x18, 0x18, 0x18, 0xff}), image.Point{}, draw.Src)

	face := basicfont.Face7x13

	for row, p := range snap.Processors {
		for col, blk := range p.Cache {
			x0 := margin + col*cellWidth
			y0 := margin + row*cellHeight
			cellRect := image.Rect(x0, y0, x0+cellWidth-2, y0+cellHeight-2)
			bg, ok := stateColor[blk.State]
			if !ok {
				bg = stateColor["I"]
			}
			draw.Draw(img, cellRect, image.NewUniform(bg), image.Point{}, draw.Src)

			label := fmt.Sprintf("P%d %s=%s/%s", p.ID, blk.Address, blk.Data, blk.State)
			drawLabel(img, face, label, x0+4, y0+18)
		}
	}
	return img
}

func drawLabel(img draw.Image, face font.Face, s string, x, y int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
