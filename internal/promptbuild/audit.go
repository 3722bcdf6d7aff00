package promptbuild

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kayz/dashgen/internal/config"
)

var auditMu sync.Mutex

type auditRecord struct {
	Timestamp       string `json:"timestamp"`
	RunID           string `json:"run_id,omitempty"`
	PromptDigest    string `json:"prompt_digest"`
	DatasetPath     string `json:"dataset_path"`
	RequirementsLen int    `json:"requirements_len"`
	FinalPrompt     string `json:"final_prompt"`
}

// Auditor appends every composed prompt to a daily JSONL file and prunes
// files older than the retention window.
type Auditor struct {
	cfg config.PromptBuildConfig
	now func() time.Time
}

func NewAuditor(cfg config.PromptBuildConfig) *Auditor {
	return &Auditor{cfg: cfg, now: time.Now}
}

// Digest is a stable fingerprint of the final prompt text.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Record writes one audit line. It is a no-op when auditing is disabled.
func (a *Auditor) Record(runID string, req Request, prompt Prompt) error {
	if !a.cfg.AuditEnabled {
		return nil
	}

	auditDir := a.auditDir()
	if err := os.MkdirAll(auditDir, 0755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	now := a.now()
	fileName := fmt.Sprintf("%s-%s.jsonl", a.prefix(), now.Format("2006-01-02"))
	filePath := filepath.Join(auditDir, fileName)

	record := auditRecord{
		Timestamp:       now.Format(time.RFC3339),
		RunID:           runID,
		PromptDigest:    Digest(prompt.Text),
		DatasetPath:     req.DatasetPath,
		RequirementsLen: len(strings.TrimSpace(req.Requirements)),
		FinalPrompt:     prompt.Text,
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if err := appendJSONL(filePath, line); err != nil {
		return err
	}

	return a.cleanupOldAuditFilesWithNow(now)
}

func appendJSONL(filePath string, line []byte) error {
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write audit file: %w", err)
	}
	return nil
}

func (a *Auditor) cleanupOldAuditFilesWithNow(now time.Time) error {
	if !a.cfg.AuditEnabled || a.cfg.AuditRetentionDays <= 0 {
		return nil
	}

	auditDir := a.auditDir()
	entries, err := os.ReadDir(auditDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("list audit dir: %w", err)
	}

	prefix := a.prefix()
	cutoff := now.AddDate(0, 0, -a.cfg.AuditRetentionDays)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, ".jsonl") {
			continue
		}

		filePath := filepath.Join(auditDir, name)
		stale := false
		if fileDate, ok := parseAuditDate(name, prefix); ok {
			stale = fileDate.Before(startOfDay(cutoff))
		} else {
			info, err := entry.Info()
			if err != nil {
				return fmt.Errorf("stat audit file %s: %w", filePath, err)
			}
			stale = info.ModTime().Before(cutoff)
		}
		if !stale {
			continue
		}
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove old audit file %s: %w", filePath, err)
		}
	}

	return nil
}

func (a *Auditor) prefix() string {
	prefix := strings.TrimSpace(a.cfg.AuditFilePrefix)
	if prefix == "" {
		prefix = "prompt"
	}
	return prefix
}

func (a *Auditor) auditDir() string {
	dir := a.cfg.AuditDir
	if dir == "" {
		dir = "prompt-audit"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	root := a.cfg.RootDir
	if root == "" {
		root = "."
	}
	return filepath.Join(root, dir)
}

func parseAuditDate(filename, prefix string) (time.Time, bool) {
	raw := strings.TrimSuffix(filename, ".jsonl")
	raw = strings.TrimPrefix(raw, prefix+"-")
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
