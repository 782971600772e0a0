package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"scankiosk/internal/barcodes"
	"scankiosk/internal/mapping"
)

func main() {
	opts := barcodes.DefaultOptions()
	var out string
	var fromMapping string

	flag.IntVar(&opts.Start, "start", opts.Start, "First code")
	flag.IntVar(&opts.End, "end", opts.End, "Last code")
	flag.IntVar(&opts.Columns, "cols", opts.Columns, "Barcodes per row")
	flag.IntVar(&opts.Padding, "padding", opts.Padding, "Pixels between barcodes")
	flag.IntVar(&opts.ModuleWidth, "module", opts.ModuleWidth, "Pixels per bar module")
	flag.IntVar(&opts.BarHeight, "height", opts.BarHeight, "Bar height in pixels")
	flag.StringVar(&fromMapping, "mapping", "", "Only print codes defined in this mapping document")
	flag.StringVar(&out, "out", "", "Output PNG (default barcodes_<start>-<end>.png)")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if fromMapping != "" {
		store := mapping.NewStore(fromMapping, log.Logger)
		if err := store.Load(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to load mapping")
		}
		opts.Codes = store.Codes()
		if len(opts.Codes) == 0 {
			log.Fatal().Str("mapping", fromMapping).Msg("mapping has no codes")
		}
	}

	codes, err := opts.List()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid code selection")
	}
	if out == "" {
		out = fmt.Sprintf("barcodes_%s-%s.png", codes[0], codes[len(codes)-1])
	}

	img, err := barcodes.Render(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to render barcodes")
	}

	f, err := os.Create(out)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create output")
	}
	if err := barcodes.WritePNG(f, img); err != nil {
		_ = f.Close()
		log.Fatal().Err(err).Msg("failed to write png")
	}
	if err := f.Close(); err != nil {
		log.Fatal().Err(err).Msg("failed to write png")
	}

	b := img.Bounds()
	log.Info().
		Str("file", out).
		Int("codes", len(codes)).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Msg("barcode sheet written")
}
