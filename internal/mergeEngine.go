package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/msrafi/optionAnalysis-sub001/api"
	"github.com/msrafi/optionAnalysis-sub001/internal/toolkit"
)

// MergeEngine folds newly exported source files into the combined dataset.
// One Run is one full load -> discover -> ingest -> prune -> persist cycle;
// nothing is held in memory across runs.
type MergeEngine struct {
	Store *StateStore
}

func NewMergeEngine(dataDir string) *MergeEngine {
	return &MergeEngine{Store: &StateStore{DataDir: dataDir}}
}

// Run performs one incremental merge against the reference instant. With
// fullRebuild set, prior state is discarded and every discovered file is
// reprocessed. A file that cannot be read aborts the whole run before any
// output is written, so a ledger entry always means the file was fully
// ingested.
func (engine *MergeEngine) Run(referenceTime time.Time, fullRebuild bool) (*api.MergeSummary, error) {
	runID := toolkit.UniqueID()
	logger := logrus.WithFields(logrus.Fields{
		"run_id": runID,
	})

	summary := &api.MergeSummary{RunID: runID}

	ledger := &Ledger{Version: LEDGER_VERSION}
	combined := make(map[string]*TradeRecord)
	if !fullRebuild {
		ledger = engine.Store.LoadLedger(logger)
		var err error
		combined, err = engine.Store.LoadCombined()
		if err != nil {
			return nil, err
		}
	}

	fileNames, err := engine.Store.DiscoverSourceFiles()
	if err != nil {
		return nil, err
	}
	summary.FilesDiscovered = len(fileNames)

	newFiles := make([]string, 0, len(fileNames))
	for _, fileName := range fileNames {
		if !fullRebuild && ledger.HasProcessed(fileName) {
			summary.FilesAlreadyProcessed++
		} else {
			newFiles = append(newFiles, fileName)
		}
	}

	if len(newFiles) == 0 {
		summary.UpToDate = true
		summary.TotalRecords = len(combined)
		logger.Infof("No new files to process, %d already in ledger", summary.FilesAlreadyProcessed)
		return summary, nil
	}

	existingBefore := len(combined)

	newEntries := make([]ProcessedFile, 0, len(newFiles))
	for _, fileName := range newFiles {
		fileStats, entry, err := engine.ingestFile(fileName, combined, referenceTime)
		if err != nil {
			return nil, err
		}
		summary.FileStats = append(summary.FileStats, fileStats)
		summary.NewRecordsAdded += fileStats.NewUnique
		summary.DuplicatesRejected += fileStats.Duplicates
		summary.ExpiredRejected += fileStats.Expired
		newEntries = append(newEntries, entry)
		logger.Infof("Ingested %s: %d rows, %d new, %d duplicate, %d expired",
			fileName, fileStats.RowsAttempted, fileStats.NewUnique, fileStats.Duplicates, fileStats.Expired)
	}
	summary.NewFilesProcessed = len(newFiles)

	// Records ingested on an earlier run may have expired since; sweep the
	// whole running set, not just the new rows.
	for key, record := range combined {
		if isExpired(record.Expiry, referenceTime) {
			delete(combined, key)
			summary.ExpiredPruned++
		}
	}
	summary.TotalRecords = len(combined)

	if err = engine.Store.WriteCombined(combined); err != nil {
		return nil, err
	}

	updatedLedger := engine.buildLedger(ledger, newEntries, runID, referenceTime, summary, existingBefore)
	if err = engine.Store.WriteLedger(updatedLedger); err != nil {
		return nil, err
	}

	logger.Infof("Merge complete: %d discovered, %d new files, %d added, %d duplicates, %d expired, %d pruned, %d total",
		summary.FilesDiscovered, summary.NewFilesProcessed, summary.NewRecordsAdded,
		summary.DuplicatesRejected, summary.ExpiredRejected, summary.ExpiredPruned, summary.TotalRecords)
	return summary, nil
}

// ingestFile reads one source file and folds its rows into the running
// combined map. First-seen wins on key collisions; a later duplicate is
// counted, never overwrites.
func (engine *MergeEngine) ingestFile(fileName string, combined map[string]*TradeRecord, referenceTime time.Time) (api.FileIngestStats, ProcessedFile, error) {
	fileStats := api.FileIngestStats{FileName: fileName}

	path := filepath.Join(engine.Store.DataDir, fileName)
	fileBytes, err := os.ReadFile(path)
	if err != nil {
		return fileStats, ProcessedFile{}, fmt.Errorf("unable to read source file %s due to: %s", path, err.Error())
	}
	info, err := os.Stat(path)
	if err != nil {
		return fileStats, ProcessedFile{}, fmt.Errorf("unable to stat source file %s due to: %s", path, err.Error())
	}

	lines := strings.Split(string(fileBytes), "\n")
	for i, line := range lines {
		if i == 0 {
			// header row
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		fileStats.RowsAttempted++

		record, reason := parseRow(line, fileName, referenceTime)
		switch reason {
		case REJECT_EXPIRED:
			fileStats.Expired++
		case REJECT_MALFORMED:
			continue
		default:
			key := record.Key()
			if _, exists := combined[key]; exists {
				fileStats.Duplicates++
			} else {
				combined[key] = record
				fileStats.NewUnique++
			}
		}
	}

	entry := ProcessedFile{
		FileName:        fileName,
		ModifiedTime:    info.ModTime(),
		ParsedTimestamp: parseFileTimestamp(fileName),
		Size:            info.Size(),
	}
	return fileStats, entry, nil
}

// buildLedger unions the prior ledger with this run's entries. Entries whose
// source file has since been deleted are kept, so raw files can be removed
// after ingestion without forcing a reprocess.
func (engine *MergeEngine) buildLedger(prior *Ledger, newEntries []ProcessedFile, runID string, referenceTime time.Time, summary *api.MergeSummary, existingBefore int) *Ledger {
	byName := make(map[string]ProcessedFile)
	for _, entry := range prior.ProcessedFiles {
		byName[entry.FileName] = entry
	}
	for _, entry := range newEntries {
		byName[entry.FileName] = entry
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	processed := make([]ProcessedFile, len(names))
	for i, name := range names {
		processed[i] = byName[name]
	}

	ledger := &Ledger{
		Version:         LEDGER_VERSION,
		RunID:           runID,
		GeneratedAt:     referenceTime,
		SourceFileCount: len(processed),
		ProcessedFiles:  processed,
		Totals: LedgerTotals{
			UniqueTotal:       summary.TotalRecords,
			NewAdded:          summary.NewRecordsAdded,
			ExpiredRemoved:    summary.ExpiredRejected + summary.ExpiredPruned,
			DuplicatesRemoved: summary.DuplicatesRejected,
			ExistingKept:      existingBefore - summary.ExpiredPruned,
		},
	}
	if len(processed) > 0 {
		latest := processed[len(processed)-1]
		ledger.LatestSourceFile = latest.FileName
		ledger.LatestModifiedTime = latest.ModifiedTime
	}
	return ledger
}
