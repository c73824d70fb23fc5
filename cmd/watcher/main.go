package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/friendwatch/engine/internal/config"
	"github.com/friendwatch/engine/internal/directory"
	"github.com/friendwatch/engine/internal/presence"
	"github.com/friendwatch/engine/internal/watch"
)

const stopTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	pollMode := flag.Bool("poll", false, "Use periodic polling instead of the push stream")
	filterFlag := flag.String("filter", "", "Comma-separated ids to track (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var dir directory.Client
	if cfg.Directory.BaseURL != "" {
		dir = directory.NewHTTPClient(cfg.Directory.BaseURL, cfg.Directory.AuthToken,
			cfg.Directory.UserAgent, cfg.Directory.Timeout)
	}

	filter := resolveFilter(cfg, dir, *filterFlag)

	var session *watch.Session
	if *pollMode || cfg.Push.URL == "" {
		if dir == nil {
			log.Fatalf("Polling mode requires directory.base_url")
		}
		log.Println("Starting in polling mode")
		session = watch.StartPolling(cfg, dir, filter)
	} else {
		log.Println("Starting in push mode")
		transport := watch.NewWebSocketTransport(cfg.Push.PingInterval, cfg.Push.PingTimeout, cfg.Push.Origin)
		session, err = watch.StartPush(cfg, transport, dir, filter)
		if err != nil {
			log.Fatalf("Failed to start watch session: %v", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		if !session.Stop(stopTimeout) {
			log.Println("Watch driver did not stop in time; abandoning it")
		}
		os.Exit(0)
	}()

	consume(session.Events())
}

// consume is the downstream consumer boundary: it drains the ordered event
// channel at its own pace and renders events to the log.
func consume(events <-chan presence.Event) {
	for ev := range events {
		switch ev.Kind {
		case presence.KindOnline:
			log.Printf("ONLINE  %s (%s)", ev.Entry.Name, ev.Entry.ID)
		case presence.KindOffline:
			log.Printf("OFFLINE %s (%s)", ev.Entry.Name, ev.Entry.ID)
		case presence.KindListSnapshot:
			names := make([]string, len(ev.List))
			for i, e := range ev.List {
				names[i] = e.Name
			}
			log.Printf("ONLINE NOW (%d): %s", len(ev.List), strings.Join(names, ", "))
		case presence.KindError:
			log.Printf("ERROR   %s", ev.Message)
		case presence.KindHeartbeat:
			// Liveness only; too chatty to log.
		}
	}
}

// resolveFilter merges the -filter flag, the configured id list, and the
// configured group's membership into one immutable filter. Group resolution
// failures are logged and skipped: a degraded filter beats a dead process.
func resolveFilter(cfg *config.Config, dir directory.Client, flagIDs string) presence.Filter {
	ids := cfg.Watch.FilterIDs
	if flagIDs != "" {
		ids = nil
		for _, id := range strings.Split(flagIDs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}

	if cfg.Watch.FilterGroup != "" && dir != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Directory.Timeout)
		defer cancel()
		members, err := dir.FetchGroupMembership(ctx, cfg.Watch.FilterGroup)
		if err != nil {
			log.Printf("Group filter %q not resolved: %v", cfg.Watch.FilterGroup, err)
		} else {
			for id := range members {
				ids = append(ids, id)
			}
			log.Printf("Group filter %q resolved: %d members", cfg.Watch.FilterGroup, len(members))
		}
	}

	return presence.NewFilter(ids)
}
