// Package pgnimport builds experience files from PGN game collections.
// Each position reached in a game becomes one observation: the move the
// game continued with, valued either by a UCI engine or by the game result.
package pgnimport

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/freeeve/pgn/v3"
	"github.com/freeeve/uci"
	"github.com/rs/zerolog"

	"github.com/freeeve/chessexp/internal/exp"
)

// Result-derived values (centipawns) used when no engine is configured.
// They are deliberately small so engine-backed observations, which carry
// real search depth, outrank them after a merge.
const (
	resultWinValue  = 100
	resultLossValue = -100
)

// Config configures the importer.
type Config struct {
	Target        string         // experience file to append to
	RatingMin     int            // skip games where either player is below this
	StockfishPath string         // optional UCI engine for real evaluations
	Depth         int            // engine search depth per position
	HashMB        int            // engine hash table size
	Threads       int            // engine threads
	MaxPlies      int            // plies to record per game (0 = all)
	Logger        zerolog.Logger // logger
}

// Stats counts what one import run did.
type Stats struct {
	Files     int
	Games     int64
	Skipped   int64
	Positions int64
}

// Importer converts PGN files into experience entries.
type Importer struct {
	cfg    Config
	store  *exp.Store
	engine *uci.Engine
	log    zerolog.Logger
}

// NewImporter creates an importer writing to cfg.Target. When a Stockfish
// path is configured, every recorded position is evaluated at cfg.Depth;
// otherwise values are derived from the game result at MinDepth, the
// weakest depth the store will still persist.
func NewImporter(cfg Config) (*Importer, error) {
	if cfg.Target == "" {
		return nil, fmt.Errorf("target experience file required")
	}
	if cfg.RatingMin == 0 {
		cfg.RatingMin = 2000
	}
	if cfg.Depth == 0 {
		cfg.Depth = 12
	}
	if cfg.HashMB == 0 {
		cfg.HashMB = 256
	}
	if cfg.Threads == 0 {
		cfg.Threads = 4
	}

	im := &Importer{
		cfg:   cfg,
		store: exp.NewStore(cfg.Logger),
		log:   cfg.Logger,
	}

	if cfg.StockfishPath != "" {
		engine, err := uci.NewEngine(cfg.StockfishPath)
		if err != nil {
			return nil, fmt.Errorf("create engine: %w", err)
		}
		opts := uci.Options{
			Hash:    cfg.HashMB,
			Threads: cfg.Threads,
			MultiPV: 1,
			Ponder:  false,
			OwnBook: false,
		}
		if err := engine.SetOptions(opts); err != nil {
			engine.Close()
			return nil, fmt.Errorf("set options: %w", err)
		}
		im.engine = engine
	}

	return im, nil
}

// Close releases the engine and the in-memory store.
func (im *Importer) Close() {
	if im.engine != nil {
		im.engine.Close()
	}
	im.store.Close()
}

// Run imports every file and appends the collected entries to the target
// experience file. Files are processed in order; a failing file is logged
// and skipped. Cancelling the context stops between games and still saves
// what was collected so far.
func (im *Importer) Run(ctx context.Context, files []string) (Stats, error) {
	var stats Stats

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		if !IsPGNFile(path) {
			im.log.Warn().Str("file", path).Msg("not a PGN file, skipping")
			continue
		}
		if err := im.processFile(ctx, path, &stats); err != nil {
			im.log.Error().Err(err).Str("file", path).Msg("import failed")
			continue
		}
		stats.Files++
	}

	if !im.store.HasNewEntries() {
		im.log.Info().Msg("nothing to save")
		return stats, ctx.Err()
	}
	if !im.store.Save(im.cfg.Target, false) {
		return stats, fmt.Errorf("save to %s failed", im.cfg.Target)
	}
	im.log.Info().
		Str("target", im.cfg.Target).
		Int("files", stats.Files).
		Int64("games", stats.Games).
		Int64("skipped", stats.Skipped).
		Int64("positions", stats.Positions).
		Msg("import complete")
	return stats, ctx.Err()
}

func (im *Importer) processFile(ctx context.Context, path string, stats *Stats) error {
	im.log.Info().Str("file", path).Msg("importing PGN file")

	startTime := time.Now()
	lastLog := time.Now()
	parser := pgn.Games(path)

	stopped := false
gameLoop:
	for game := range parser.Games {
		select {
		case <-ctx.Done():
			if !stopped {
				parser.Stop()
				stopped = true
			}
			break gameLoop
		default:
		}

		whiteRating := parseRating(game.Tags["WhiteElo"])
		blackRating := parseRating(game.Tags["BlackElo"])
		if whiteRating < im.cfg.RatingMin || blackRating < im.cfg.RatingMin {
			stats.Skipped++
			continue
		}

		positions, err := im.processGame(game)
		if err != nil {
			im.log.Warn().Err(err).Msg("game skipped")
			stats.Skipped++
			continue
		}
		stats.Games++
		stats.Positions += int64(positions)

		if time.Since(lastLog) > 10*time.Second {
			elapsed := time.Since(startTime)
			im.log.Info().
				Str("file", filepath.Base(path)).
				Int64("games", stats.Games).
				Int64("skipped", stats.Skipped).
				Int64("positions", stats.Positions).
				Float64("games_per_sec", float64(stats.Games)/elapsed.Seconds()).
				Msg("import progress")
			lastLog = time.Now()
		}
	}

	if err := parser.Err(); err != nil {
		return err
	}
	return nil
}

// processGame replays one game and records an observation per position.
func (im *Importer) processGame(game *pgn.Game) (int, error) {
	// Result from white's perspective; flipped per ply below.
	var whiteScore int32
	switch game.Tags["Result"] {
	case "1-0":
		whiteScore = resultWinValue
	case "0-1":
		whiteScore = resultLossValue
	case "1/2-1/2":
		whiteScore = 0
	default:
		return 0, fmt.Errorf("game without result")
	}

	pos := pgn.NewStartingPosition()
	positions := 0

	for ply, mv := range game.Moves {
		if im.cfg.MaxPlies > 0 && ply >= im.cfg.MaxPlies {
			break
		}

		packed := pos.Pack()
		key := exp.Key(xxhash.Sum64(packed[:]))
		move := exp.EncodeMove(int(mv.From), int(mv.To), promoCode(mv))

		value, depth, err := im.valueFor(pos, ply, whiteScore)
		if err != nil {
			return positions, err
		}
		im.store.AddPVEntry(key, move, value, depth)
		positions++

		if err := pgn.ApplyMove(pos, mv); err != nil {
			return positions, fmt.Errorf("apply move at ply %d: %w", ply, err)
		}
	}
	return positions, nil
}

// valueFor values the position before the recorded move, from the side to
// move's perspective, matching how engines score probed entries.
func (im *Importer) valueFor(pos *pgn.GameState, ply int, whiteScore int32) (value, depth int32, err error) {
	if im.engine == nil {
		score := whiteScore
		if ply%2 == 1 {
			score = -score
		}
		return score, exp.MinDepth, nil
	}

	fen := pos.ToFEN()
	if err := im.engine.SetFEN(fen); err != nil {
		return 0, 0, fmt.Errorf("set FEN: %w", err)
	}
	results, err := im.engine.GoDepth(im.cfg.Depth, uci.HighestDepthOnly)
	if err != nil {
		return 0, 0, fmt.Errorf("engine eval: %w", err)
	}
	if len(results.Results) == 0 {
		return 0, 0, fmt.Errorf("no results from engine")
	}
	best := results.Results[0]
	for _, r := range results.Results {
		if r.Depth > best.Depth {
			best = r
		}
	}

	score := int32(best.Score)
	if best.Mate {
		// Mate distance to a mate-band value, sign preserved.
		if score >= 0 {
			score = 32000 - score
		} else {
			score = -32000 - score
		}
	}
	return score, int32(best.Depth), nil
}

func promoCode(mv pgn.Mv) byte {
	switch mv.Promo {
	case pgn.PromoQueen:
		return exp.PromoQueen
	case pgn.PromoRook:
		return exp.PromoRook
	case pgn.PromoBishop:
		return exp.PromoBishop
	case pgn.PromoKnight:
		return exp.PromoKnight
	}
	return exp.PromoNone
}

// IsPGNFile reports whether name looks like a PGN file, plain or
// zstd-compressed.
func IsPGNFile(name string) bool {
	ext := filepath.Ext(name)
	if ext == ".pgn" {
		return true
	}
	if ext == ".zst" {
		base := strings.TrimSuffix(name, ext)
		return filepath.Ext(base) == ".pgn"
	}
	return false
}

func parseRating(s string) int {
	if s == "" || s == "?" || s == "-" {
		return 0
	}
	r, _ := strconv.Atoi(s)
	return r
}
