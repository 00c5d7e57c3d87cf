package internal

import (
	"fmt"
	"strconv"
	"time"
)

const EXPIRY_FORMAT = "01/02/2006"
const FILENAME_TIME_FORMAT = "2006-01-02_15-04"
const COMBINED_FILE_NAME = "options_data_combined.csv"
const LEDGER_FILE_NAME = "processed_files.json"
const SOURCE_FILE_PREFIX = "options_data_"
const KEY_FORMAT = "%s_%s_%s_%s_%d_%s_%s"

const LEDGER_VERSION = 1

// MIN_RAW_FIELDS is the smallest field count a source row may have; shorter
// rows are rejected before layout resolution.
const MIN_RAW_FIELDS = 16

// TradeRecord is one validated, non-expired alert row. The csv tags define the
// combined-dataset column order.
type TradeRecord struct {
	Ticker       string  `csv:"ticker"`
	Strike       float64 `csv:"strike"`
	Expiry       string  `csv:"expiry"`
	OptionType   string  `csv:"optionType"`
	Volume       int     `csv:"volume"`
	Premium      string  `csv:"premium"`
	OpenInterest int     `csv:"openInterest"`
	BidAskSpread int     `csv:"bidAskSpread"`
	Timestamp    string  `csv:"timestamp"`
	SweepType    string  `csv:"sweepType"`
	SourceFile   string  `csv:"sourceFile"`
}

// Key derives the dedup identity of a record: trade economics plus the
// reported timestamp. sweepType, openInterest, bidAskSpread and sourceFile are
// deliberately left out, so the same trade reported by two files collapses to
// whichever was processed first.
func (record *TradeRecord) Key() string {
	return fmt.Sprintf(KEY_FORMAT,
		record.Ticker,
		strconv.FormatFloat(record.Strike, 'f', -1, 64),
		record.Expiry,
		record.OptionType,
		record.Volume,
		record.Premium,
		record.Timestamp)
}

type ProcessedFile struct {
	FileName        string    `json:"fileName"`
	ModifiedTime    time.Time `json:"modifiedTime"`
	ParsedTimestamp time.Time `json:"parsedTimestamp"`
	Size            int64     `json:"size"`
}

type LedgerTotals struct {
	UniqueTotal       int `json:"uniqueTotal"`
	NewAdded          int `json:"newAdded"`
	ExpiredRemoved    int `json:"expiredRemoved"`
	DuplicatesRemoved int `json:"duplicatesRemoved"`
	ExistingKept      int `json:"existingKept"`
}

// Ledger is the persisted processed-file record. Entries are kept even after
// the raw source file is deleted from disk.
type Ledger struct {
	Version            int             `json:"version"`
	RunID              string          `json:"runId"`
	GeneratedAt        time.Time       `json:"generatedAt"`
	SourceFileCount    int             `json:"sourceFileCount"`
	LatestSourceFile   string          `json:"latestSourceFile"`
	LatestModifiedTime time.Time       `json:"latestModifiedTime"`
	Totals             LedgerTotals    `json:"totals"`
	ProcessedFiles     []ProcessedFile `json:"processedFiles"`
}

func (ledger *Ledger) HasProcessed(fileName string) bool {
	for _, processed := range ledger.ProcessedFiles {
		if processed.FileName == fileName {
			return true
		}
	}
	return false
}
