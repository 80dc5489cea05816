package main

import (
	"fmt"
	"sort"

	"github.com/c1advanced/c1prep/internal/storage/sqlite"
)

func cmdOffline(args []string, opts globalOptions) error {
	sub := "status"
	if len(args) > 0 {
		sub = args[0]
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()
	con := newConsole(stdin, stdout)

	switch sub {
	case "download":
		con.printf("Downloading %d exercises...\n", a.cfg.Practice.OfflinePackSize)
		n, err := a.fetcher.DownloadPack(ctx, a.userID())
		if err != nil {
			return err
		}
		data := map[string]int{"stored": n, "requested": a.cfg.Practice.OfflinePackSize}
		if err := a.history.RecordEvent(ctx, sqlite.ActivityPackDownload, "", data); err != nil {
			a.logger.Warn("record pack download", "error", err)
		}
		con.printf("Stored %d exercises for offline practice.\n", n)
		return nil

	case "status":
		n, err := a.pack.Len(ctx)
		if err != nil {
			return err
		}
		counts, err := sqlite.NewOfflineStore(a.db).CountByType(ctx)
		if err != nil {
			return err
		}
		capacity := a.pack.Capacity()
		con.printf("Offline pack: %d/%d %s\n", n, capacity, renderProgressBar(float64(n)/float64(capacity), 20))

		types := make([]string, 0, len(counts))
		for t := range counts {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			con.printf("  %-35s %d\n", t, counts[t])
		}
		if a.fetcher.Online(ctx) {
			con.println("Server: reachable")
		} else {
			con.println("Server: offline")
		}
		return nil
	}
	return fmt.Errorf("unknown offline command %q (use download or status)", sub)
}
