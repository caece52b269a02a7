package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/research-core/core-permissions/internal/catalog"
	"github.com/research-core/core-permissions/internal/obs"
	"github.com/research-core/core-permissions/internal/profiles"
	"github.com/research-core/core-permissions/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	var (
		dsn          = flag.String("dsn", os.Getenv("CORE_PG_DSN"), "PostgreSQL DSN")
		forceDefault = flag.Bool("default", false, "Reset profile groups to their baseline capability set")
		timeout      = flag.Duration("timeout", 2*time.Minute, "Overall command timeout")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or CORE_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: permsync [list|sync [unit id...]|report]")
	}

	obs.Init()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	cat, err := catalog.New(store)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}

	switch flag.Arg(0) {
	case "list":
		err = runList(ctx, store, cat)
	case "sync":
		err = runSync(ctx, store, cat, flag.Args()[1:], *forceDefault)
	case "report":
		err = runReport(ctx, store, cat)
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("permsync %s: %v", flag.Arg(0), err)
	}
}

func newSynchronizer(ctx context.Context, store *pg.Store, cat *catalog.Catalog) (*profiles.Synchronizer, error) {
	baselines, err := profiles.ResolveBaselines(ctx, cat)
	if err != nil {
		return nil, err
	}
	return profiles.NewSynchronizer(store, baselines)
}

func runList(ctx context.Context, store *pg.Store, cat *catalog.Catalog) error {
	sync, err := newSynchronizer(ctx, store, cat)
	if err != nil {
		return err
	}
	units, err := sync.ListUnits(ctx)
	if err != nil {
		return err
	}
	for _, u := range units {
		fmt.Printf("%d\t%s\t%s\n", u.ID, u.Type, u.Name)
	}
	return nil
}

func runSync(ctx context.Context, store *pg.Store, cat *catalog.Catalog, args []string, forceDefault bool) error {
	unitIDs := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("unit id %q: %w", arg, err)
		}
		unitIDs = append(unitIDs, id)
	}

	sync, err := newSynchronizer(ctx, store, cat)
	if err != nil {
		return err
	}
	reports, err := sync.Sync(ctx, unitIDs, forceDefault)
	if err != nil {
		return err
	}
	for _, rep := range reports {
		fmt.Println(reportLine(rep))
	}
	return nil
}

func reportLine(rep profiles.SyncReport) string {
	line := fmt.Sprintf("%s\tunit=%d %s", rep.Status, rep.UnitID, rep.UnitName)
	if rep.Profile != "" {
		line += "\tprofile=" + string(rep.Profile)
	}
	if rep.Err != nil {
		line += "\terr=" + rep.Err.Error()
	}
	return line
}

func runReport(ctx context.Context, store *pg.Store, cat *catalog.Catalog) error {
	filter, err := profiles.NewFilter(cat, store)
	if err != nil {
		return err
	}
	reporter, err := profiles.NewReporter(filter, store)
	if err != nil {
		return err
	}
	summaries, err := reporter.AccessReport(ctx)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		mark := ""
		if s.Flagged {
			mark = "\tFLAGGED"
		}
		fmt.Printf("%s\tcontracts=%d proposals=%d people=%d%s\n",
			s.Username, len(s.Contracts), len(s.Proposals), len(s.People), mark)
	}
	return nil
}
