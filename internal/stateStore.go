package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"
)

// StateStore persists the merge state between runs: the combined dataset CSV
// and the processed-file ledger JSON, both under DataDir.
type StateStore struct {
	DataDir string
}

func (store *StateStore) CombinedPath() string {
	return filepath.Join(store.DataDir, COMBINED_FILE_NAME)
}

func (store *StateStore) LedgerPath() string {
	return filepath.Join(store.DataDir, LEDGER_FILE_NAME)
}

// LoadCombined reads the combined dataset into a map keyed by dedup key. A
// missing file is an empty dataset; an unreadable or unparseable file is fatal,
// since treating it as empty would silently discard prior records.
func (store *StateStore) LoadCombined() (map[string]*TradeRecord, error) {
	combined := make(map[string]*TradeRecord)

	fileBytes, err := os.ReadFile(store.CombinedPath())
	if err != nil {
		if os.IsNotExist(err) {
			return combined, nil
		}
		return nil, fmt.Errorf("unable to read combined file %s due to: %s", store.CombinedPath(), err.Error())
	}

	records := make([]*TradeRecord, 0)
	err = gocsv.UnmarshalBytes(fileBytes, &records)
	if err != nil {
		return nil, fmt.Errorf("unable to unmarshal combined file %s due to: %s", store.CombinedPath(), err.Error())
	}

	for _, record := range records {
		key := record.Key()
		if _, exists := combined[key]; !exists {
			combined[key] = record
		}
	}
	return combined, nil
}

// WriteCombined rewrites the combined dataset atomically, rows sorted by dedup
// key so repeated runs over the same state produce identical bytes.
func (store *StateStore) WriteCombined(combined map[string]*TradeRecord) error {
	keys := make([]string, 0, len(combined))
	for key := range combined {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	records := make([]*TradeRecord, len(keys))
	for i, key := range keys {
		records[i] = combined[key]
	}

	combinedBytes, err := gocsv.MarshalBytes(&records)
	if err != nil {
		return fmt.Errorf("unable to marshal combined records due to: %s", err.Error())
	}
	return writeFileAtomic(store.CombinedPath(), combinedBytes)
}

// LoadLedger reads the processed-file ledger. A missing, unreadable or corrupt
// ledger degrades to an empty one, which forces a full reprocess on this run.
func (store *StateStore) LoadLedger(logger *logrus.Entry) *Ledger {
	ledger := &Ledger{Version: LEDGER_VERSION}

	fileBytes, err := os.ReadFile(store.LedgerPath())
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("Unable to read ledger %s, treating as empty: %s", store.LedgerPath(), err.Error())
		}
		return ledger
	}

	if err = json.Unmarshal(fileBytes, ledger); err != nil {
		logger.Warnf("Ledger %s is corrupt, treating as empty: %s", store.LedgerPath(), err.Error())
		return &Ledger{Version: LEDGER_VERSION}
	}
	ledger.Version = LEDGER_VERSION
	return ledger
}

func (store *StateStore) WriteLedger(ledger *Ledger) error {
	ledgerBytes, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal ledger due to: %s", err.Error())
	}
	return writeFileAtomic(store.LedgerPath(), ledgerBytes)
}

// DiscoverSourceFiles lists candidate source filenames in DataDir, sorted
// lexicographically for a deterministic processing order. The combined output
// itself is never a candidate.
func (store *StateStore) DiscoverSourceFiles() ([]string, error) {
	entries, err := os.ReadDir(store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("unable to list data dir %s due to: %s", store.DataDir, err.Error())
	}

	fileNames := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == COMBINED_FILE_NAME {
			continue
		}
		if strings.HasPrefix(name, SOURCE_FILE_PREFIX) && strings.HasSuffix(name, ".csv") {
			fileNames = append(fileNames, name)
		}
	}
	sort.Strings(fileNames)
	return fileNames, nil
}

// parseFileTimestamp extracts the capture time embedded in a source filename,
// e.g. options_data_2025-08-29_09-45.csv. Variant prefixes from older exports
// are understood too. Returns the zero time when the name does not parse.
func parseFileTimestamp(fileName string) time.Time {
	stripped := fileName
	for _, prefix := range []string{"options_data_", "option_data_", "darkpool_data_"} {
		if strings.HasPrefix(stripped, prefix) {
			stripped = strings.TrimPrefix(stripped, prefix)
			break
		}
	}
	stripped = strings.TrimSuffix(stripped, ".csv")

	parsed, err := time.Parse(FILENAME_TIME_FORMAT, stripped)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("unable to write %s due to: %s", tmpPath, err.Error())
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("unable to rename %s into place due to: %s", tmpPath, err.Error())
	}
	return nil
}
