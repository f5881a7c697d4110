package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deemkeen/mergodon/db"
	"github.com/deemkeen/mergodon/domain"
	"github.com/deemkeen/mergodon/federation"
	"github.com/deemkeen/mergodon/identity"
	"github.com/deemkeen/mergodon/timeline"
	"github.com/deemkeen/mergodon/users"
	"github.com/deemkeen/mergodon/util"
	"github.com/deemkeen/mergodon/web"
)

func main() {

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(conf))

	database, err := db.NewDB(conf.Conf.DbFile)
	if err != nil {
		log.Fatalln(err)
	}

	if err := database.RunMigrations(); err != nil {
		log.Printf("Warning: Migration errors (may be normal if tables exist): %v", err)
	}
	log.Println("Database migrations complete")

	cache := users.NewCache()
	resolver := identity.NewResolver(database)
	extractor := identity.NewExtractor(resolver, cache)

	var loaderFetcher users.Fetcher
	if conf.Conf.WithFetch {
		fetcher := federation.NewFetcher(conf, cache, database)
		fetcher.Start()
		loaderFetcher = fetcher
	}
	loader := users.NewLoader(cache, database, loaderFetcher)

	server := &web.Server{
		Conf:      conf,
		DB:        database,
		Loader:    loader,
		Extractor: extractor,
		Timeline:  timelineFromConf(conf, database),
	}

	startServing(server)
}

func timelineFromConf(conf *util.AppConfig, database *db.DB) timeline.Timeline {
	preferred := domain.OriginEmpty
	if conf.Conf.PreferredOrigin != "" {
		err, origin := database.ReadOriginByName(conf.Conf.PreferredOrigin)
		if err != nil {
			log.Printf("Preferred origin %s not found: %v", conf.Conf.PreferredOrigin, err)
		} else {
			preferred = *origin
		}
	}

	tl := timeline.NewTimeline(preferred)
	if conf.Conf.MinLengthToCompare > 0 {
		tl.MinLengthToCompare = conf.Conf.MinLengthToCompare
	}
	if conf.Conf.MaxHourDistance > 0 {
		tl.MaxDistance = time.Duration(conf.Conf.MaxHourDistance) * time.Hour
	}
	return tl
}

func startServing(server *web.Server) {
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Router(); err != nil {
			log.Fatalln(err)
		}
	}()

	<-done
	log.Println("Stopping server")
}
