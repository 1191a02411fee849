package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const cmakeEntry = "CMakeLists.txt"

// Workspace is the editor/workspace host: it resolves instance sources and
// stages sources that arrive through short links.
type Workspace interface {
	ReadSource(origin string) (string, error)
	ReadProject(dir string) (string, []SourceFile, error)
	StageSource(content, language string) (string, error)
	StageTree(files []SourceFile) (string, error)
	WriteFile(path, contents string) error
}

// DiskWorkspace serves sources from disk plus the buffers the editor host
// reports as open.
type DiskWorkspace struct {
	root    string
	staging string

	mu        sync.RWMutex
	active    string
	documents map[string]string
}

// NewDiskWorkspace creates a workspace rooted at root
func NewDiskWorkspace(root, staging string) *DiskWorkspace {
	return &DiskWorkspace{
		root:      root,
		staging:   staging,
		documents: make(map[string]string),
	}
}

// SetActive records which document has focus in the editor
func (w *DiskWorkspace) SetActive(path string) {
	w.mu.Lock()
	w.active = path
	w.mu.Unlock()
}

// Active returns the path of the focused document
func (w *DiskWorkspace) Active() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.active
}

// OpenDocument registers an editor buffer, which may not exist on disk yet
func (w *DiskWorkspace) OpenDocument(path, content string) {
	w.mu.Lock()
	w.documents[filepath.Clean(path)] = content
	w.mu.Unlock()
}

// CloseDocument forgets an editor buffer
func (w *DiskWorkspace) CloseDocument(path string) {
	w.mu.Lock()
	delete(w.documents, filepath.Clean(path))
	w.mu.Unlock()
}

// ReadSource returns the text of the active editor or of a file
func (w *DiskWorkspace) ReadSource(origin string) (string, error) {
	path := origin
	if origin == InputActive {
		path = w.Active()
		if path == "" {
			return "", configurationErrorf("no active editor found")
		}
		LogDebugf("Read source from active editor, which is %q", path)
	} else {
		LogDebugf("Read source from file %q", path)
	}

	w.mu.RLock()
	content, open := w.documents[filepath.Clean(path)]
	w.mu.RUnlock()
	if open {
		return content, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", configurationErrorf("file not found: %s", path)
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// ReadProject reads a CMake project: the CMakeLists.txt text plus every
// other file below dir, with slash separated relative names.
func (w *DiskWorkspace) ReadProject(dir string) (string, []SourceFile, error) {
	entry := filepath.Join(dir, cmakeEntry)
	cmake, err := os.ReadFile(entry)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, configurationErrorf("%s not found in %s", cmakeEntry, dir)
		}
		return "", nil, fmt.Errorf("failed to read %s: %w", entry, err)
	}

	var files []SourceFile
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		// Skip large files
		if info.Size() > 1024*1024 {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".exe" || ext == ".dll" || ext == ".so" || ext == ".dylib" || ext == ".o" || ext == ".obj" || ext == ".a" {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}
		relPath = filepath.ToSlash(relPath)
		if relPath == cmakeEntry {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", path, err)
		}
		files = append(files, SourceFile{Filename: relPath, Contents: string(content)})
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	LogDebugf("Read %d files from project directory: %s", len(files)+1, dir)
	return string(cmake), files, nil
}

// StageSource writes a loaded source to the next free sourceN file
func (w *DiskWorkspace) StageSource(content, language string) (string, error) {
	dir, err := w.stagingDir()
	if err != nil {
		return "", err
	}

	ext := sourceExtension(language)
	var filename string
	for index := 1; ; index++ {
		filename = filepath.Join(dir, fmt.Sprintf("source%d%s", index, ext))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			break
		}
	}

	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to stage source: %w", err)
	}
	LogDebugf("Staged source at %s", filename)
	return filename, nil
}

// StageTree writes a loaded project to the next free cmakeN directory
func (w *DiskWorkspace) StageTree(files []SourceFile) (string, error) {
	dir, err := w.stagingDir()
	if err != nil {
		return "", err
	}

	var src string
	for index := 1; ; index++ {
		src = filepath.Join(dir, fmt.Sprintf("cmake%d", index))
		if _, err := os.Stat(src); os.IsNotExist(err) {
			break
		}
	}
	if err := os.MkdirAll(src, 0755); err != nil {
		return "", fmt.Errorf("failed to create project directory: %w", err)
	}

	for _, file := range files {
		fullPath := filepath.Join(src, filepath.FromSlash(file.Filename))
		rel, err := filepath.Rel(src, fullPath)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", malformedLinkf("file %q escapes the project directory", file.Filename)
		}
		if err := w.WriteFile(fullPath, file.Contents); err != nil {
			return "", err
		}
	}

	LogDebugf("Staged %d project files at %s", len(files), src)
	return src, nil
}

// WriteFile creates or replaces a file, creating parent directories
func (w *DiskWorkspace) WriteFile(path, contents string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (w *DiskWorkspace) stagingDir() (string, error) {
	if w.root == "" {
		return "", configurationErrorf("no workspace folder found")
	}
	dir := w.staging
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(w.root, dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	return dir, nil
}

func sourceExtension(language string) string {
	switch strings.ToLower(language) {
	case "c++", "cpp", "cuda":
		return ".cpp"
	case "c":
		return ".c"
	case "rust":
		return ".rs"
	case "go":
		return ".go"
	case "cmake":
		return ".cmake"
	default:
		return ".txt"
	}
}
