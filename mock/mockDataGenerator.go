package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const FILENAME_FORMAT = "options_data_%s.csv"
const FILENAME_TIME_FORMAT = "2006-01-02_15-04"
const EXPIRY_FORMAT = "01/02/2006"
const HEADER = "alertId,scanType,marketTime,timestamp,ticker,sweepType,strike,expiry,optionType,volume,premium,openInterest,ref1,ref2,ref3,ref4"

var tickers = []string{"AAPL", "TSLA", "NVDA", "SPY", "QQQ", "AMD", "MSFT", "META", "AMZN", "GOOG"}
var sweepTypes = []string{"Sweep", "Block", "Split"}
var optionTypes = []string{"C", "P"}

func main() {
	totalFiles := flag.Int("totalFiles", 3, "number of source files to generate")
	rowsPerFile := flag.Int("rowsPerFile", 50, "number of data rows per file")
	expiredShare := flag.Int("expiredShare", 10, "percentage of rows with an already-passed expiry")
	alternativeShare := flag.Int("alternativeShare", 20, "percentage of rows using the alternative layout")
	dataDir := flag.String("dataDir", "./data", "directory to write the generated files into")
	flag.Parse()

	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		log.Fatalf("Unable to create %s: %s", *dataDir, err.Error())
	}

	baseTime := time.Now().Add(-time.Duration(*totalFiles) * time.Hour)
	for i := 0; i < *totalFiles; i++ {
		fileTime := baseTime.Add(time.Duration(i) * time.Hour)
		fileName := fmt.Sprintf(FILENAME_FORMAT, fileTime.Format(FILENAME_TIME_FORMAT))

		lines := make([]string, 0, *rowsPerFile+1)
		lines = append(lines, HEADER)
		for j := 0; j < *rowsPerFile; j++ {
			lines = append(lines, generateRow(fileTime, *expiredShare, *alternativeShare))
		}

		path := filepath.Join(*dataDir, fileName)
		if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
			log.Fatalf("Unable to write %s: %s", path, err.Error())
		}
		log.Printf("Wrote %d rows to %s\n", *rowsPerFile, path)
	}
}

func generateRow(fileTime time.Time, expiredShare int, alternativeShare int) string {
	ticker := tickers[rand.Intn(len(tickers))]
	sweepType := sweepTypes[rand.Intn(len(sweepTypes))]
	optionType := optionTypes[rand.Intn(len(optionTypes))]
	strike := fmt.Sprintf("%.1f", float64(rand.Intn(4000))/10+50)
	volume := fmt.Sprintf("\"%d,%03d\"", rand.Intn(9)+1, rand.Intn(1000))
	premium := fmt.Sprintf("\"$%d,%03d,%03d\"", rand.Intn(9)+1, rand.Intn(1000), rand.Intn(1000))
	openInterest := fmt.Sprintf("%d", rand.Intn(50000))
	timestamp := fileTime.Add(-time.Duration(rand.Intn(3600)) * time.Second).Format("15:04:05")

	expiryOffset := rand.Intn(90) + 1
	if rand.Intn(100) < expiredShare {
		expiryOffset = -(rand.Intn(30) + 1)
	}
	expiry := fileTime.AddDate(0, 0, expiryOffset).Format(EXPIRY_FORMAT)

	if rand.Intn(100) < alternativeShare {
		// alternative layout: empty leading fields, bracket marker, shifted
		// timestamp, trailing ticker and sweep type
		return strings.Join([]string{
			"", "", "", "", "[", timestamp,
			strike, expiry, optionType, volume, premium, openInterest,
			ticker, sweepType, "", "",
		}, ",")
	}

	return strings.Join([]string{
		fmt.Sprintf("%d", rand.Intn(1000000)), "opt", "regular", timestamp, ticker, sweepType,
		strike, expiry, optionType, volume, premium, openInterest,
		"", "", "", "",
	}, ",")
}
