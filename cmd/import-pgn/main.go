// Command import-pgn builds experience entries from PGN game collections,
// optionally evaluating each position with a UCI engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/freeeve/chessexp/internal/exp"
	"github.com/freeeve/chessexp/internal/logx"
	"github.com/freeeve/chessexp/internal/pgnimport"
)

func main() {
	defaultRatingMin := 2000
	if envRating := os.Getenv("CHESSEXP_RATING_MIN"); envRating != "" {
		if rating, err := strconv.Atoi(envRating); err == nil {
			defaultRatingMin = rating
		}
	}

	var (
		target    = flag.String("target", "experience.exp", "Experience file to append to")
		ratingMin = flag.Int("rating-min", defaultRatingMin, "Rating floor for games")
		stockfish = flag.String("stockfish", "", "Path to UCI engine for real evaluations (optional)")
		depth     = flag.Int("depth", 12, "Engine search depth per position")
		hashMB    = flag.Int("hash", 256, "Engine hash table size (MB)")
		threads   = flag.Int("threads", 4, "Engine threads")
		maxPlies  = flag.Int("max-plies", 0, "Plies to record per game (0 = all)")
		defrag    = flag.Bool("defrag", false, "Defragment the target after importing")
	)
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: import-pgn [options] <file.pgn[.zst]> [...]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := logx.NewLogger()
	logger.Info().
		Str("target", *target).
		Int("rating_min", *ratingMin).
		Str("stockfish", *stockfish).
		Msg("starting import")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	im, err := pgnimport.NewImporter(pgnimport.Config{
		Target:        *target,
		RatingMin:     *ratingMin,
		StockfishPath: *stockfish,
		Depth:         *depth,
		HashMB:        *hashMB,
		Threads:       *threads,
		MaxPlies:      *maxPlies,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create importer")
	}
	defer im.Close()

	if _, err := im.Run(ctx, files); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("import failed")
	}

	if *defrag && exp.FileExists(*target) {
		if !exp.Defrag(*target, logger) {
			logger.Fatal().Str("file", *target).Msg("defrag failed")
		}
	}
}
