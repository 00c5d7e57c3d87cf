package internal

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"

	"github.com/msrafi/optionAnalysis-sub001/api"
)

// MainHandler wires the merge engine to the HTTP surface. The file-listing
// routes double as the published endpoint the FileLoader consumes.
type MainHandler struct {
	Engine *MergeEngine
	Config *Config
}

func NewMainHandler(config *Config) *MainHandler {
	gocsv.FailIfUnmatchedStructTags = true

	return &MainHandler{
		Engine: NewMergeEngine(config.DataDir),
		Config: config,
	}
}

// ListFiles publishes the source-file listing as {name, size, timestamp}
// entries.
func (handler *MainHandler) ListFiles(c *gin.Context) {
	fileNames, err := handler.Engine.Store.DiscoverSourceFiles()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	entries := make([]api.FileEntry, 0, len(fileNames))
	for _, fileName := range fileNames {
		info, err := os.Stat(filepath.Join(handler.Config.DataDir, fileName))
		if err != nil {
			logrus.Warnf("Skipping %s in listing due to: %s", fileName, err.Error())
			continue
		}
		entries = append(entries, api.FileEntry{
			Name:      fileName,
			Size:      info.Size(),
			Timestamp: info.ModTime().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, entries)
}

// GetFile serves one raw source file by name.
func (handler *MainHandler) GetFile(c *gin.Context) {
	name := c.Param("name")
	if !validSourceFileName(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name"})
		return
	}

	fileBytes, err := os.ReadFile(filepath.Join(handler.Config.DataDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/csv", fileBytes)
}

// GetCombined serves the combined dataset, 404 before the first merge.
func (handler *MainHandler) GetCombined(c *gin.Context) {
	fileBytes, err := os.ReadFile(handler.Engine.Store.CombinedPath())
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no combined dataset yet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/csv", fileBytes)
}

// RunMerge triggers one engine pass and returns the summary.
func (handler *MainHandler) RunMerge(c *gin.Context) {
	var req api.MergeReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, api.MergeSummary{Error: err.Error()})
			return
		}
	}

	summary, err := handler.Engine.Run(time.Now(), req.FullRebuild)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.MergeSummary{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// validSourceFileName rejects anything that is not a plain source CSV name, so
// the file route cannot traverse outside the data dir.
func validSourceFileName(name string) bool {
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return false
	}
	return strings.HasPrefix(name, SOURCE_FILE_PREFIX) && strings.HasSuffix(name, ".csv") && name != COMBINED_FILE_NAME
}
