package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mikey/email-assistant/internal/config"
	"github.com/mikey/email-assistant/internal/core"
	"github.com/mikey/email-assistant/internal/markdown"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk layout of a structured rule file
type ruleFile struct {
	Rules []core.Rule `json:"rules"`
}

// FileStore keeps the profile as a markdown document plus a directory of
// rule files. It assumes a single writer per invocation.
type FileStore struct {
	fs              afero.Fs
	path            string
	rulesDir        string
	defaultRuleFile string
	schema          *jsonschema.Schema
	logger          *zap.Logger
}

// NewFileStore creates a profile store rooted at the configured paths
func NewFileStore(fs afero.Fs, cfg config.ProfileConfig, logger *zap.Logger) (*FileStore, error) {
	schema, err := compileRuleFileSchema()
	if err != nil {
		return nil, err
	}
	defaultRuleFile := cfg.DefaultRuleFile
	if defaultRuleFile == "" {
		defaultRuleFile = "user.json"
	}
	return &FileStore{
		fs:              fs,
		path:            cfg.Path,
		rulesDir:        cfg.RulesDir,
		defaultRuleFile: defaultRuleFile,
		schema:          schema,
		logger:          logger,
	}, nil
}

// Load reads the guidance document and every rule file. A rule file that
// fails to parse is skipped and reported in Profile.Warnings as a
// *core.ProfileCorruptError. ErrProfileUnusable is returned, together with
// the partial profile, only when nothing usable was loaded.
func (s *FileStore) Load() (*core.Profile, error) {
	text, err := s.readText()
	if err != nil {
		return nil, err
	}

	p := &core.Profile{Text: text}
	names, err := s.ruleFiles()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		rules, err := s.readRuleFile(name)
		if err != nil {
			s.logger.Warn("Skipping corrupt rule file", zap.String("file", name), zap.Error(err))
			p.Warnings = append(p.Warnings, &core.ProfileCorruptError{Path: filepath.Join(s.rulesDir, name), Err: err})
			continue
		}
		p.Rules = append(p.Rules, rules...)
	}

	s.logger.Debug("Loaded profile",
		zap.Int("rules", len(p.Rules)),
		zap.Int("rule_files", len(names)),
		zap.Int("warnings", len(p.Warnings)))

	if strings.TrimSpace(p.Text) == "" && len(p.Rules) == 0 && len(p.Warnings) > 0 {
		return p, core.ErrProfileUnusable
	}
	return p, nil
}

// Save writes the guidance document and the rule files the profile's rules
// came from. Rules without a source go to the default rule file.
func (s *FileStore) Save(p *core.Profile) error {
	if err := s.writeAtomic(s.path, []byte(p.Text)); err != nil {
		return fmt.Errorf("failed to save profile text: %w", err)
	}

	byFile := make(map[string][]core.Rule)
	var order []string
	for _, r := range p.Rules {
		name := r.Source
		if name == "" {
			name = s.defaultRuleFile
		}
		if _, ok := byFile[name]; !ok {
			order = append(order, name)
		}
		byFile[name] = append(byFile[name], r)
	}
	for _, name := range order {
		if err := s.writeRuleFile(name, byFile[name]); err != nil {
			return err
		}
	}
	return nil
}

// AppendRule adds a rule at the end of the default rule file
func (s *FileStore) AppendRule(rule core.Rule) error {
	name := s.defaultRuleFile
	var rules []core.Rule
	exists, err := afero.Exists(s.fs, filepath.Join(s.rulesDir, name))
	if err != nil {
		return err
	}
	if exists {
		if rules, err = s.readRuleFile(name); err != nil {
			return &core.ProfileCorruptError{Path: filepath.Join(s.rulesDir, name), Err: err}
		}
	}
	for _, r := range rules {
		if strings.EqualFold(r.Name, rule.Name) {
			return fmt.Errorf("rule %q already exists in %s", rule.Name, name)
		}
	}
	rule.Source = name
	return s.writeRuleFile(name, append(rules, rule))
}

// RewriteText replaces the body of one section of the guidance document,
// appending the section when it does not exist yet
func (s *FileStore) RewriteText(sectionID string, newText string) error {
	text, err := s.readText()
	if err != nil {
		return err
	}
	return s.writeAtomic(s.path, []byte(markdown.Replace(text, sectionID, newText)))
}

// RemoveSection deletes a section from the guidance document. A missing
// section is not an error.
func (s *FileStore) RemoveSection(sectionID string) error {
	text, err := s.readText()
	if err != nil {
		return err
	}
	updated, ok := markdown.Remove(text, sectionID)
	if !ok {
		return nil
	}
	return s.writeAtomic(s.path, []byte(updated))
}

func (s *FileStore) readText() (string, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultText, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read profile: %w", err)
	}
	return string(data), nil
}

// ruleFiles lists rule file names in lexical order. Hidden files, such as
// temp files left by an interrupted write, are ignored.
func (s *FileStore) ruleFiles() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.rulesDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list rule files: %w", err)
	}

	var names []string
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".json", ".yaml", ".yml":
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) readRuleFile(name string) ([]core.Rule, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.rulesDir, name))
	if err != nil {
		return nil, err
	}

	// YAML files are converted so both formats share one schema and decoder
	if ext := strings.ToLower(filepath.Ext(name)); ext == ".yaml" || ext == ".yml" {
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	}

	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var file ruleFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	for i := range file.Rules {
		file.Rules[i].Source = name
	}
	return file.Rules, nil
}

func (s *FileStore) writeRuleFile(name string, rules []core.Rule) error {
	if rules == nil {
		rules = []core.Rule{}
	}
	var data []byte
	var err error
	if ext := strings.ToLower(filepath.Ext(name)); ext == ".yaml" || ext == ".yml" {
		data, err = marshalYAML(ruleFile{Rules: rules})
	} else {
		data, err = json.MarshalIndent(ruleFile{Rules: rules}, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode rule file %s: %w", name, err)
	}
	if err := s.writeAtomic(filepath.Join(s.rulesDir, name), data); err != nil {
		return fmt.Errorf("failed to save rule file %s: %w", name, err)
	}
	return nil
}

// marshalYAML goes through JSON so the rule codecs decide the shape
func marshalYAML(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

// writeAtomic replaces path with data: a temp file in the same directory is
// written, synced and renamed over the target
func (s *FileStore) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		if rmErr := s.fs.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Warn("Failed to remove temp file", zap.String("file", tmpName), zap.Error(rmErr))
		}
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
