package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/herohde/sherlock/pkg/board"
	"github.com/herohde/sherlock/pkg/board/fen"
	"github.com/herohde/sherlock/pkg/sherlock"
	"github.com/herohde/sherlock/pkg/sherlock/cache"
	"github.com/seekerror/logw"
)

var (
	position = flag.String("fen", fen.Initial, "FEN position to analyze")
	square   = flag.String("square", "", "if set, report legal colored pieces on this square instead of checking the position as a whole")
	dir      = flag.String("cache", "", "Badger cache directory (omit for no persistence)")
)

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: sherlock [options]

SHERLOCK is a retrograde chess legality analyzer.
Options:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctx := context.Background()

	pos, turn, _, _, err := fen.Decode(*position)
	if err != nil {
		logw.Exitf(ctx, "invalid FEN %q: %v", *position, err)
	}

	var c *cache.Cache
	if *dir != "" {
		c, err = cache.NewCache(cache.CacheOptions{Dir: *dir})
		if err != nil {
			logw.Exitf(ctx, "failed to open cache at %v: %v", *dir, err)
		}
		defer c.Close()

		logw.Infof(ctx, "sherlock: using cache at %v", *dir)
	}

	if *square != "" {
		sq, err := board.ParseSquareStr(*square)
		if err != nil {
			logw.Exitf(ctx, "invalid square %q: %v", *square, err)
		}

		for _, cp := range sherlock.LegalPiecesOn(ctx, pos, sq, turn) {
			fmt.Println(cp)
		}
		return
	}

	legal, err := isLegal(ctx, c, pos, turn)
	if err != nil {
		logw.Exitf(ctx, "cache error: %v", err)
	}
	if legal {
		fmt.Println("legal")
	} else {
		fmt.Println("illegal")
	}
}

func isLegal(ctx context.Context, c *cache.Cache, pos *board.Position, turn board.Color) (bool, error) {
	if c != nil {
		return c.IsLegal(ctx, pos, turn)
	}
	return sherlock.IsLegal(ctx, pos, turn), nil
}
