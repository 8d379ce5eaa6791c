// Command feedsync refreshes the blog document and the llms.txt summary.
// It exits non-zero only when no source could be fetched and nothing was
// cached from an earlier run.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/saint2706/portfolio/internal/config"
	"github.com/saint2706/portfolio/internal/feeds"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("[feeds] config: %v", err)
	}

	out := flag.String("out", cfg.FeedPath, "blog document path")
	summary := flag.String("summary", cfg.SummaryPath, "llms.txt path, empty to skip")
	limit := flag.Int("limit", cfg.FeedLimit, "posts kept per source")
	attempts := flag.Int("attempts", cfg.FeedAttempts, "tries per source")
	baseDelay := flag.Duration("base-delay", cfg.FeedBaseDelay, "first retry delay, doubled on each retry")
	timeout := flag.Duration("timeout", cfg.FeedTimeout, "per-request timeout")
	flag.Parse()

	prev, err := feeds.LoadDocument(*out)
	if err != nil {
		log.Printf("[feeds] ignoring unreadable %s: %v", *out, err)
		prev = nil
	}

	syncer, err := feeds.NewSyncer(cfg.FeedSources, feeds.Options{
		Limit:     *limit,
		Attempts:  *attempts,
		BaseDelay: *baseDelay,
		Client:    &http.Client{Timeout: *timeout},
	})
	if err != nil {
		log.Fatalf("[feeds] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	doc, rep, err := syncer.Sync(ctx, prev)
	if errors.Is(err, feeds.ErrNoData) {
		log.Printf("[feeds] %v; leaving %s untouched", err, *out)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("[feeds] sync: %v", err)
	}

	if err := feeds.WriteDocument(*out, doc); err != nil {
		log.Fatalf("[feeds] write %s: %v", *out, err)
	}
	log.Printf("[feeds] wrote %s: %d fetched, %d failed, %d preserved", *out, len(rep.Fetched), len(rep.Failed), len(rep.Preserved))

	if *summary != "" {
		site := feeds.Site{
			Title:       cfg.SiteTitle,
			URL:         cfg.SiteURL,
			Description: "Personal portfolio with projects, a blog and a Tic-Tac-Toe game against a minimax opponent.",
			Games:       []string{"Tic-Tac-Toe (easy, medium, hard)"},
		}
		if err := feeds.WriteSummary(*summary, doc, site); err != nil {
			log.Fatalf("[feeds] write %s: %v", *summary, err)
		}
		log.Printf("[feeds] wrote %s", *summary)
	}
}
