package internal

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testHeader = "alertId,scanType,marketTime,timestamp,ticker,sweepType,strike,expiry,optionType,volume,premium,openInterest,ref1,ref2,ref3,ref4"

var runReference = time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC)

func writeSourceFile(t *testing.T, dir string, name string, rows ...string) {
	t.Helper()
	content := testHeader + "\n" + strings.Join(rows, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func dataRowCount(t *testing.T, path string) int {
	t.Helper()
	fileBytes, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	lines := strings.Split(strings.TrimRight(string(fileBytes), "\n"), "\n")
	return len(lines) - 1 // minus header
}

func TestRunFirstMerge(t *testing.T) {
	dir := t.TempDir()
	engine := NewMergeEngine(dir)

	writeSourceFile(t, dir, "options_data_2025-08-29_10-00.csv",
		standardRow("10:01:00", "AAPL", "Sweep", "150", "12/31/2099", "C", "500", "$75,000", "900"),
		standardRow("10:02:00", "TSLA", "Block", "250", "12/31/2099", "P", "0", "$10,000", "40"),
	)

	summary, err := engine.Run(runReference, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.UpToDate {
		t.Errorf("UpToDate = true on a run with new files")
	}
	if summary.FilesDiscovered != 1 || summary.NewFilesProcessed != 1 {
		t.Errorf("FilesDiscovered = %d, NewFilesProcessed = %d, want 1 and 1",
			summary.FilesDiscovered, summary.NewFilesProcessed)
	}
	if summary.NewRecordsAdded != 1 {
		t.Errorf("NewRecordsAdded = %d, want 1 (zero-volume row must be dropped)", summary.NewRecordsAdded)
	}
	if summary.TotalRecords != 1 {
		t.Errorf("TotalRecords = %d, want 1", summary.TotalRecords)
	}
	if len(summary.FileStats) != 1 {
		t.Fatalf("FileStats has %d entries, want 1", len(summary.FileStats))
	}
	if summary.FileStats[0].RowsAttempted != 2 || summary.FileStats[0].NewUnique != 1 {
		t.Errorf("FileStats = %+v, want 2 attempted and 1 new unique", summary.FileStats[0])
	}

	if got := dataRowCount(t, engine.Store.CombinedPath()); got != 1 {
		t.Errorf("combined file has %d data rows, want 1", got)
	}

	ledger := engine.Store.LoadLedger(testLogger())
	if !ledger.HasProcessed("options_data_2025-08-29_10-00.csv") {
		t.Errorf("ledger missing the processed file")
	}
	if ledger.Totals.NewAdded != 1 {
		t.Errorf("ledger Totals.NewAdded = %d, want 1", ledger.Totals.NewAdded)
	}
}

func TestRunShortCircuitIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	engine := NewMergeEngine(dir)

	writeSourceFile(t, dir, "options_data_2025-08-29_10-00.csv",
		standardRow("10:01:00", "AAPL", "Sweep", "150", "12/31/2099", "C", "500", "$75,000", "900"),
	)

	if _, err := engine.Run(runReference, false); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	combinedBefore, err := os.ReadFile(engine.Store.CombinedPath())
	if err != nil {
		t.Fatalf("reading combined: %v", err)
	}
	ledgerBefore, err := os.ReadFile(engine.Store.LedgerPath())
	if err != nil {
		t.Fatalf("reading ledger: %v", err)
	}

	summary, err := engine.Run(runReference.Add(time.Hour), false)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !summary.UpToDate {
		t.Errorf("UpToDate = false, want short-circuit with no new files")
	}
	if summary.FilesAlreadyProcessed != 1 {
		t.Errorf("FilesAlreadyProcessed = %d, want 1", summary.FilesAlreadyProcessed)
	}
	if summary.TotalRecords != 1 {
		t.Errorf("TotalRecords = %d, want 1", summary.TotalRecords)
	}

	combinedAfter, err := os.ReadFile(engine.Store.CombinedPath())
	if err != nil {
		t.Fatalf("reading combined: %v", err)
	}
	ledgerAfter, err := os.ReadFile(engine.Store.LedgerPath())
	if err != nil {
		t.Fatalf("reading ledger: %v", err)
	}
	if !bytes.Equal(combinedBefore, combinedAfter) {
		t.Errorf("combined file changed on a no-op run")
	}
	if !bytes.Equal(ledgerBefore, ledgerAfter) {
		t.Errorf("ledger changed on a no-op run")
	}
}

func TestRunDedupsAcrossFilesAndRuns(t *testing.T) {
	dir := t.TempDir()
	engine := NewMergeEngine(dir)

	sameTrade := standardRow("10:01:00", "AAPL", "Sweep", "150", "12/31/2099", "C", "500", "$75,000", "900")

	writeSourceFile(t, dir, "options_data_2025-08-29_10-00.csv", sameTrade)
	if _, err := engine.Run(runReference, false); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// the same logical trade shows up again in a later export, plus one new
	writeSourceFile(t, dir, "options_data_2025-08-29_11-00.csv",
		sameTrade,
		standardRow("10:45:00", "NVDA", "Block", "480", "12/31/2099", "P", "750", "$98,000", "1200"),
	)

	summary, err := engine.Run(runReference, false)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.DuplicatesRejected != 1 {
		t.Errorf("DuplicatesRejected = %d, want 1", summary.DuplicatesRejected)
	}
	if summary.NewRecordsAdded != 1 {
		t.Errorf("NewRecordsAdded = %d, want 1", summary.NewRecordsAdded)
	}
	if summary.TotalRecords != 2 {
		t.Errorf("TotalRecords = %d, want 2", summary.TotalRecords)
	}

	// first-seen wins: the surviving AAPL record keeps its original provenance
	combined, err := engine.Store.LoadCombined()
	if err != nil {
		t.Fatalf("LoadCombined: %v", err)
	}
	for _, record := range combined {
		if record.Ticker == "AAPL" && record.SourceFile != "options_data_2025-08-29_10-00.csv" {
			t.Errorf("AAPL SourceFile = %q, want the first-seen file", record.SourceFile)
		}
	}
}

func TestRunPrunesRecordsExpiredBetweenRuns(t *testing.T) {
	dir := t.TempDir()
	engine := NewMergeEngine(dir)

	writeSourceFile(t, dir, "options_data_2025-08-29_10-00.csv",
		standardRow("10:01:00", "AAPL", "Sweep", "150", "09/01/2025", "C", "500", "$75,000", "900"),
	)
	if _, err := engine.Run(runReference, false); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// a later run, after the expiry has passed, with one fresh file
	writeSourceFile(t, dir, "options_data_2025-09-05_10-00.csv",
		standardRow("10:01:00", "NVDA", "Block", "480", "12/31/2099", "P", "750", "$98,000", "1200"),
	)
	laterReference := time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)

	summary, err := engine.Run(laterReference, false)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.ExpiredPruned != 1 {
		t.Errorf("ExpiredPruned = %d, want 1", summary.ExpiredPruned)
	}
	if summary.TotalRecords != 1 {
		t.Errorf("TotalRecords = %d, want 1", summary.TotalRecords)
	}

	combined, err := engine.Store.LoadCombined()
	if err != nil {
		t.Fatalf("LoadCombined: %v", err)
	}
	for _, record := range combined {
		if record.Ticker == "AAPL" {
			t.Errorf("expired AAPL record still present after re-prune")
		}
	}
}

func TestRunFullRebuild(t *testing.T) {
	dir := t.TempDir()
	engine := NewMergeEngine(dir)

	writeSourceFile(t, dir, "options_data_2025-08-29_10-00.csv",
		standardRow("10:01:00", "AAPL", "Sweep", "150", "12/31/2099", "C", "500", "$75,000", "900"),
	)
	writeSourceFile(t, dir, "options_data_2025-08-29_11-00.csv",
		standardRow("10:45:00", "NVDA", "Block", "480", "12/31/2099", "P", "750", "$98,000", "1200"),
	)
	if _, err := engine.Run(runReference, false); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// raw files can be deleted post-ingestion; a full rebuild only sees what
	// is still on disk
	if err := os.Remove(filepath.Join(dir, "options_data_2025-08-29_10-00.csv")); err != nil {
		t.Fatalf("removing source file: %v", err)
	}
	// a rebuild never consults the prior ledger, so even a corrupt one is fine
	if err := os.WriteFile(engine.Store.LedgerPath(), []byte("garbage"), 0644); err != nil {
		t.Fatalf("corrupting ledger: %v", err)
	}

	summary, err := engine.Run(runReference, true)
	if err != nil {
		t.Fatalf("rebuild Run: %v", err)
	}
	if summary.FilesDiscovered != 1 || summary.NewFilesProcessed != 1 {
		t.Errorf("FilesDiscovered = %d, NewFilesProcessed = %d, want 1 and 1",
			summary.FilesDiscovered, summary.NewFilesProcessed)
	}
	if summary.TotalRecords != 1 {
		t.Errorf("TotalRecords = %d, want 1", summary.TotalRecords)
	}

	ledger := engine.Store.LoadLedger(testLogger())
	if ledger.HasProcessed("options_data_2025-08-29_10-00.csv") {
		t.Errorf("rebuilt ledger still references the deleted file")
	}
}

func TestRunKeepsLedgerEntriesForDeletedFiles(t *testing.T) {
	dir := t.TempDir()
	engine := NewMergeEngine(dir)

	writeSourceFile(t, dir, "options_data_2025-08-29_10-00.csv",
		standardRow("10:01:00", "AAPL", "Sweep", "150", "12/31/2099", "C", "500", "$75,000", "900"),
	)
	if _, err := engine.Run(runReference, false); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	if err := os.Remove(filepath.Join(dir, "options_data_2025-08-29_10-00.csv")); err != nil {
		t.Fatalf("removing source file: %v", err)
	}
	writeSourceFile(t, dir, "options_data_2025-08-29_11-00.csv",
		standardRow("10:45:00", "NVDA", "Block", "480", "12/31/2099", "P", "750", "$98,000", "1200"),
	)

	summary, err := engine.Run(runReference, false)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.TotalRecords != 2 {
		t.Errorf("TotalRecords = %d, want 2 (deleted file's records must survive)", summary.TotalRecords)
	}

	ledger := engine.Store.LoadLedger(testLogger())
	if !ledger.HasProcessed("options_data_2025-08-29_10-00.csv") {
		t.Errorf("ledger entry for the deleted file was dropped")
	}
	if ledger.SourceFileCount != 2 {
		t.Errorf("SourceFileCount = %d, want 2", ledger.SourceFileCount)
	}
}

func TestRunUnreadableFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	engine := NewMergeEngine(dir)

	// a dangling symlink matches the naming convention but cannot be read
	if err := os.Symlink(filepath.Join(dir, "missing-target"), filepath.Join(dir, "options_data_2025-08-29_10-00.csv")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	writeSourceFile(t, dir, "options_data_2025-08-29_11-00.csv",
		standardRow("10:45:00", "NVDA", "Block", "480", "12/31/2099", "P", "750", "$98,000", "1200"),
	)

	_, err := engine.Run(runReference, false)
	if err == nil {
		t.Fatalf("Run succeeded with an unreadable source file")
	}

	if _, statErr := os.Stat(engine.Store.CombinedPath()); !os.IsNotExist(statErr) {
		t.Errorf("combined file written despite fatal run")
	}
	if _, statErr := os.Stat(engine.Store.LedgerPath()); !os.IsNotExist(statErr) {
		t.Errorf("ledger written despite fatal run")
	}
}

func TestRunCorruptLedgerForcesReprocess(t *testing.T) {
	dir := t.TempDir()
	engine := NewMergeEngine(dir)

	writeSourceFile(t, dir, "options_data_2025-08-29_10-00.csv",
		standardRow("10:01:00", "AAPL", "Sweep", "150", "12/31/2099", "C", "500", "$75,000", "900"),
	)
	if _, err := engine.Run(runReference, false); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	if err := os.WriteFile(engine.Store.LedgerPath(), []byte("garbage"), 0644); err != nil {
		t.Fatalf("corrupting ledger: %v", err)
	}

	summary, err := engine.Run(runReference, false)
	if err != nil {
		t.Fatalf("Run after ledger corruption: %v", err)
	}
	if summary.NewFilesProcessed != 1 {
		t.Errorf("NewFilesProcessed = %d, want 1 (corrupt ledger forces reprocess)", summary.NewFilesProcessed)
	}
	if summary.DuplicatesRejected != 1 {
		t.Errorf("DuplicatesRejected = %d, want 1 (combined dataset still seeds dedup)", summary.DuplicatesRejected)
	}
	if summary.TotalRecords != 1 {
		t.Errorf("TotalRecords = %d, want 1, reprocessing must not duplicate records", summary.TotalRecords)
	}
}
