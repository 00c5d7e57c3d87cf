package main

import (
	"flag"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/msrafi/optionAnalysis-sub001/internal"
)

func main() {
	serve := flag.Bool("serve", false, "start the HTTP server instead of running one merge")
	aggregate := flag.Bool("aggregate", false, "aggregate the published file listing over HTTP instead of merging on disk")
	bustCache := flag.Bool("bust-cache", false, "ignore cached fetches when aggregating")
	fullRebuild := flag.Bool("full-rebuild", false, "discard prior state and reprocess every source file")
	dataDir := flag.String("data-dir", "", "override DATA_DIR from the environment")
	flag.Parse()

	config := internal.LoadConfig()
	if *dataDir != "" {
		config.DataDir = *dataDir
	}

	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if *serve {
		runServer(config)
		return
	}

	if *aggregate {
		records, err := internal.AggregateFromListing(config, *bustCache, time.Now())
		if err != nil {
			logrus.Errorf("Aggregation failed due to: %s", err.Error())
			os.Exit(1)
		}
		logrus.Infof("Aggregated %d records from %s", len(records), config.ListingBaseURL)
		return
	}

	engine := internal.NewMergeEngine(config.DataDir)
	summary, err := engine.Run(time.Now(), *fullRebuild)
	if err != nil {
		logrus.Errorf("Merge failed due to: %s", err.Error())
		os.Exit(1)
	}
	if summary.UpToDate {
		logrus.Info("Combined dataset already up to date")
	}
}

func runServer(config *internal.Config) {
	mainHandler := internal.NewMainHandler(config)

	router := gin.Default()
	router.Use(cors.Default())
	router.GET("/api/files", mainHandler.ListFiles)
	router.GET("/api/files/:name", mainHandler.GetFile)
	router.GET("/api/combined", mainHandler.GetCombined)
	router.POST("/api/merge", mainHandler.RunMerge)

	if err := router.Run(":" + config.Port); err != nil {
		logrus.Errorf("Server stopped due to: %s", err.Error())
		os.Exit(1)
	}
}
