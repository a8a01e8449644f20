package prd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestFile is the name of the PRD-set manifest.
const ManifestFile = "manifest.json"

// Manifest describes the documents of a PRD set and their relationships.
type Manifest struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Documents   []ManifestEntry `json:"documents"`
}

// ManifestEntry is one document in the manifest.
type ManifestEntry struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	File      string   `json:"file"`
	DependsOn []string `json:"dependsOn,omitempty"`
	Tasks     int      `json:"tasks"`
}

// Writer serializes finished documents to the on-disk PRD-set format:
// one <id>.json per document plus manifest.json.
type Writer struct {
	Dir string
	now func() time.Time
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir, now: time.Now}
}

// FileName returns the file a document is written to.
func FileName(doc *Document) string {
	id := doc.ID
	if id == "" {
		id = "untitled"
	}
	return Slugify(id) + ".json"
}

// Write persists a single document and returns its path.
func (w *Writer) Write(doc *Document) (string, error) {
	path := filepath.Join(w.Dir, FileName(doc))
	if err := Save(path, doc); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// WriteSet persists all documents and a manifest describing them.
func (w *Writer) WriteSet(docs []*Document) (*Manifest, error) {
	manifest := &Manifest{GeneratedAt: w.now().UTC()}

	for _, doc := range docs {
		path, err := w.Write(doc)
		if err != nil {
			return nil, err
		}
		manifest.Documents = append(manifest.Documents, ManifestEntry{
			ID:        doc.ID,
			Title:     doc.Title,
			File:      filepath.Base(path),
			DependsOn: doc.DependsOn(),
			Tasks:     doc.TaskCount(),
		})
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := WriteFileAtomic(filepath.Join(w.Dir, ManifestFile), data); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	return manifest, nil
}

// ReadManifest loads the manifest from dir. Returns nil when none exists.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if isNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}
