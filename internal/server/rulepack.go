package server

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/kartoza/brb-engine/internal/config"
	"github.com/kartoza/brb-engine/internal/httputil"
	"github.com/kartoza/brb-engine/internal/ruletable"
	"github.com/kartoza/brb-engine/internal/vocab"
)

// rulePackManifest describes the contents of a rule pack zip
type rulePackManifest struct {
	Format      string `json:"format"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Created     string `json:"created"`
}

// handleRulePackStatus returns the current rule pack status
func (s *Server) handleRulePackStatus(w http.ResponseWriter, r *http.Request) {
	settings, err := config.LoadSettings()
	if err != nil {
		httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"installed": false,
			"error":     err.Error(),
		})
		return
	}

	if settings.RulePackPath == "" {
		httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"installed": false,
		})
		return
	}

	if _, err := os.Stat(settings.RulePackPath); err != nil {
		httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"installed": false,
			"error":     "rule pack path no longer exists",
		})
		return
	}

	var manifest rulePackManifest
	manifestPath := filepath.Join(settings.RulePackPath, "manifest.json")
	if data, err := os.ReadFile(manifestPath); err == nil {
		json.Unmarshal(data, &manifest)
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"installed":   true,
		"path":        settings.RulePackPath,
		"version":     manifest.Version,
		"description": manifest.Description,
	})
}

// handleRulePackInstall extracts a rule pack zip, loads every rule base
// it contains into the store, and registers the pack
func (s *Server) handleRulePackInstall(w http.ResponseWriter, r *http.Request) {
	if s.ruleStore == nil {
		httputil.RespondError(w, http.StatusServiceUnavailable, "no rule store loaded")
		return
	}

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Path == "" {
		httputil.RespondError(w, http.StatusBadRequest, "path is required")
		return
	}

	if _, err := os.Stat(req.Path); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("file not found: %s", req.Path))
		return
	}
	if !strings.HasSuffix(strings.ToLower(req.Path), ".zip") {
		httputil.RespondError(w, http.StatusBadRequest, "file must be a .zip archive")
		return
	}

	storeDir, err := config.DataStoreDir()
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("could not determine data directory: %v", err))
		return
	}
	extractDir := filepath.Join(storeDir, "rulepacks")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("could not create directory: %v", err))
		return
	}

	packDir, err := extractRulePack(req.Path, extractDir)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("extraction failed: %v", err))
		return
	}

	ids, err := s.loadRulePack(packDir)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("invalid rule pack: %v", err))
		return
	}

	settings, _ := config.LoadSettings()
	settings.RulePackPath = packDir
	if err := config.SaveSettings(settings); err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("could not save settings: %v", err))
		return
	}

	log.Printf("Rule pack installed: %s (%d rule bases)", packDir, len(ids))
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"installed": true,
		"path":      packDir,
		"rulebases": ids,
	})
}

// loadRulePack walks the extracted pack for vocab.yaml/rules.csv pairs
// and admits each pair into the store as a rule base.
func (s *Server) loadRulePack(packDir string) ([]string, error) {
	var ids []string
	err := filepath.WalkDir(packDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "vocab.yaml" {
			return nil
		}

		v, err := vocab.Load(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		rulesPath := filepath.Join(filepath.Dir(path), "rules.csv")
		table, err := ruletable.LoadCSV(rulesPath)
		if err != nil {
			return fmt.Errorf("%s: %w", rulesPath, err)
		}

		id, err := s.ruleStore.Save(v, table)
		if err != nil {
			return fmt.Errorf("rule base %q rejected: %w", v.Name, err)
		}
		log.Printf("Loaded rule base %q (%d rules) as %s", v.Name, len(table.Rows), id)
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no vocab.yaml found in pack")
	}
	return ids, nil
}

// extractRulePack unzips a rule pack archive into the target directory.
// Returns the path to the extracted pack root directory.
func extractRulePack(zipPath, targetDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("could not open zip: %w", err)
	}
	defer r.Close()

	// Find the common root directory name from the zip
	var rootDir string
	for _, f := range r.File {
		parts := strings.SplitN(f.Name, "/", 2)
		if len(parts) > 0 {
			rootDir = parts[0]
			break
		}
	}
	if rootDir == "" {
		return "", fmt.Errorf("empty zip archive")
	}

	packDir := filepath.Join(targetDir, rootDir)

	// Remove existing extraction if present
	os.RemoveAll(packDir)

	for _, f := range r.File {
		// Sanitize path to prevent zip slip
		destPath := filepath.Join(targetDir, f.Name)
		if !strings.HasPrefix(destPath, filepath.Clean(targetDir)+string(os.PathSeparator)) {
			return "", fmt.Errorf("illegal file path in zip: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			os.MkdirAll(destPath, 0o755)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return "", fmt.Errorf("could not create directory: %w", err)
		}

		outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			return "", fmt.Errorf("could not create file: %w", err)
		}

		rc, err := f.Open()
		if err != nil {
			outFile.Close()
			return "", fmt.Errorf("could not open zip entry: %w", err)
		}

		_, err = io.Copy(outFile, rc)
		rc.Close()
		outFile.Close()
		if err != nil {
			return "", fmt.Errorf("could not extract file: %w", err)
		}
	}

	return packDir, nil
}
