// Package storage abstracts the two persistence shapes the governance core
// needs: an append-only line log (the ledger) and a single keyed document
// rewritten atomically (the override store). The same ledger and override
// logic runs unchanged against a local file or an embedded database.
package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is the minimal persistence contract shared by the ledger and the
// override store. Implementations must serialize writes internally.
type Store interface {
	// AppendLine appends one line (without trailing newline) to the line log.
	AppendLine(line []byte) error
	// ReadLines returns all lines in append order. Blank lines are skipped.
	ReadLines() ([][]byte, error)
	// ReplaceDoc atomically replaces the keyed document.
	ReplaceDoc(doc []byte) error
	// ReadDoc returns the current keyed document, or nil if none exists.
	ReadDoc() ([]byte, error)
	// Close releases underlying resources.
	Close() error
}

// FileStore persists the line log as a JSONL file and the document as a
// sibling file replaced via tmp+rename.
type FileStore struct {
	linePath string
	docPath  string

	mu   sync.Mutex
	file *os.File
}

// OpenFile creates a FileStore. linePath backs AppendLine/ReadLines and
// docPath backs ReplaceDoc/ReadDoc; either may be empty if unused.
func OpenFile(linePath, docPath string) (*FileStore, error) {
	fs := &FileStore{linePath: linePath, docPath: docPath}

	if linePath != "" {
		if err := os.MkdirAll(filepath.Dir(linePath), 0700); err != nil {
			return nil, fmt.Errorf("storage: create directory: %w", err)
		}
		f, err := os.OpenFile(linePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("storage: open line log: %w", err)
		}
		fs.file = f
	}
	if docPath != "" {
		if err := os.MkdirAll(filepath.Dir(docPath), 0700); err != nil {
			return nil, fmt.Errorf("storage: create directory: %w", err)
		}
	}

	return fs, nil
}

// AppendLine writes one line and syncs so a crash cannot tear it.
func (fs *FileStore) AppendLine(line []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.file == nil {
		return fmt.Errorf("storage: no line log configured")
	}
	if _, err := fs.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("storage: write line: %w", err)
	}
	if err := fs.file.Sync(); err != nil {
		return fmt.Errorf("storage: sync: %w", err)
	}
	return nil
}

// ReadLines reads the whole line log. Safe to call while appends continue;
// readers observe a prefix of the log.
func (fs *FileStore) ReadLines() ([][]byte, error) {
	if fs.linePath == "" {
		return nil, nil
	}
	f, err := os.Open(fs.linePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: open line log: %w", err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		// Scanner reuses its buffer.
		line := make([]byte, len(raw))
		copy(line, raw)
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("storage: scan line log: %w", err)
	}
	return lines, nil
}

// ReplaceDoc writes the document to a temp file and renames it into place.
func (fs *FileStore) ReplaceDoc(doc []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.docPath == "" {
		return fmt.Errorf("storage: no document path configured")
	}
	tmp := fs.docPath + ".tmp"
	if err := os.WriteFile(tmp, doc, 0600); err != nil {
		return fmt.Errorf("storage: write document: %w", err)
	}
	if err := os.Rename(tmp, fs.docPath); err != nil {
		return fmt.Errorf("storage: replace document: %w", err)
	}
	return nil
}

// ReadDoc returns the document bytes, or nil if the file does not exist.
func (fs *FileStore) ReadDoc() ([]byte, error) {
	if fs.docPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(fs.docPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read document: %w", err)
	}
	return data, nil
}

// Close closes the line log file.
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.file != nil {
		err := fs.file.Close()
		fs.file = nil
		return err
	}
	return nil
}
