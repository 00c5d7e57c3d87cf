package internal

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/msrafi/optionAnalysis-sub001/api"
)

const DEFAULT_CACHE_TTL = 5 * time.Minute

// Shown when the listing endpoint is unreachable, so the consumer path renders
// something instead of erroring out.
var placeholderEntry = api.FileEntry{Name: "options_data_2025-01-01_09-30.csv"}

// FileLoader is the consumer-side path: it pulls the published file listing
// and file contents over HTTP, with a bounded-lifetime cache per filename. It
// shares no state with the merge engine.
type FileLoader struct {
	BaseURL string
	Client  *http.Client

	cache *gocache.Cache
	ttl   time.Duration
}

func NewFileLoader(baseURL string, ttl time.Duration) *FileLoader {
	if ttl <= 0 {
		ttl = DEFAULT_CACHE_TTL
	}
	return &FileLoader{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  http.DefaultClient,
		cache:   gocache.New(ttl, ttl),
		ttl:     ttl,
	}
}

// FetchFileList returns the published listing, newest first. Any failure falls
// back to a single placeholder entry rather than erroring.
func (loader *FileLoader) FetchFileList() []api.FileEntry {
	fallback := []api.FileEntry{placeholderEntry}

	resp, err := loader.Client.Get(loader.BaseURL + "/api/files")
	if err != nil {
		logrus.Warnf("Unable to fetch file listing due to: %s", err.Error())
		return fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logrus.Warnf("File listing returned status %d", resp.StatusCode)
		return fallback
	}

	entries := make([]api.FileEntry, 0)
	if err = json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		logrus.Warnf("Unable to decode file listing due to: %s", err.Error())
		return fallback
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return listingTime(entries[i]).After(listingTime(entries[j]))
	})
	return entries
}

// listingTime parses an entry timestamp leniently; entries with timestamps we
// cannot parse keep the zero time and sort last, but are never dropped.
func listingTime(entry api.FileEntry) time.Time {
	if entry.Timestamp == "" {
		return time.Time{}
	}
	parsed, err := dateparse.ParseAny(entry.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// LoadFiles fetches the content of every listed file, one goroutine per fetch.
// A failing fetch is logged and filtered out, never aborting its siblings. In
// default mode still-valid cache entries are served without a refetch; with
// bustCache the cache is ignored, wiped and repopulated with fresh results.
func (loader *FileLoader) LoadFiles(bustCache bool) ([]api.LoadedFile, error) {
	entries := loader.FetchFileList()

	loaded := make([]api.LoadedFile, 0, len(entries))
	toFetch := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !bustCache {
			if cached, ok := loader.cache.Get(entry.Name); ok {
				loaded = append(loaded, cached.(api.LoadedFile))
				continue
			}
		}
		toFetch = append(toFetch, entry.Name)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	fetched := make([]api.LoadedFile, 0, len(toFetch))
	for _, name := range toFetch {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			file, err := loader.fetchFile(name)
			if err != nil {
				logrus.Warnf("Skipping %s due to: %s", name, err.Error())
				return
			}
			mu.Lock()
			fetched = append(fetched, file)
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	if bustCache {
		loader.cache.Flush()
	}
	for _, file := range fetched {
		loader.cache.Set(file.Name, file, loader.ttl)
	}

	loaded = append(loaded, fetched...)
	if len(loaded) == 0 {
		return nil, fmt.Errorf("no files could be loaded from %s", loader.BaseURL)
	}

	sort.Slice(loaded, func(i, j int) bool {
		return loaded[i].Name < loaded[j].Name
	})
	return loaded, nil
}

func (loader *FileLoader) fetchFile(name string) (api.LoadedFile, error) {
	resp, err := loader.Client.Get(loader.BaseURL + "/api/files/" + name)
	if err != nil {
		return api.LoadedFile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return api.LoadedFile{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return api.LoadedFile{}, err
	}
	return api.LoadedFile{Name: name, Content: string(content)}, nil
}

// AggregateFromListing runs the full consumer path once: fetch the published
// listing, load the file contents and aggregate them into deduplicated,
// non-expired records.
func AggregateFromListing(config *Config, bustCache bool, referenceTime time.Time) ([]*TradeRecord, error) {
	loader := NewFileLoader(config.ListingBaseURL, config.CacheTTL)
	files, err := loader.LoadFiles(bustCache)
	if err != nil {
		return nil, err
	}
	return loader.AggregateRecords(files, referenceTime), nil
}

// ClearCache wipes the entire fetch cache, used on user-triggered hard
// refresh.
func (loader *FileLoader) ClearCache() {
	loader.cache.Flush()
}

// AggregateRecords runs the same parse/dedup/expiry logic as the merge engine
// over fetched file contents, for presentation-time aggregation without the
// persisted ledger.
func (loader *FileLoader) AggregateRecords(files []api.LoadedFile, referenceTime time.Time) []*TradeRecord {
	combined := make(map[string]*TradeRecord)
	for _, file := range files {
		lines := strings.Split(file.Content, "\n")
		for i, line := range lines {
			if i == 0 || strings.TrimSpace(line) == "" {
				continue
			}
			record, reason := parseRow(line, file.Name, referenceTime)
			if reason != REJECT_NONE {
				continue
			}
			if _, exists := combined[record.Key()]; !exists {
				combined[record.Key()] = record
			}
		}
	}

	keys := make([]string, 0, len(combined))
	for key := range combined {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	records := make([]*TradeRecord, len(keys))
	for i, key := range keys {
		records[i] = combined[key]
	}
	return records
}
