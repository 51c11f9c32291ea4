package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mikey/email-assistant/internal/config"
	"github.com/mikey/email-assistant/internal/core"
	"github.com/mikey/email-assistant/internal/markdown"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	profilePath = "/cfg/profile.md"
	rulesDir    = "/cfg/rules"
)

func newTestStore(t *testing.T, fs afero.Fs) *FileStore {
	t.Helper()
	store, err := NewFileStore(fs, config.ProfileConfig{
		Path:            profilePath,
		RulesDir:        rulesDir,
		DefaultRuleFile: "user.json",
	}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestLoadDefaultsWhenEmpty(t *testing.T) {
	store := newTestStore(t, afero.NewMemMapFs())

	p, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultText, p.Text)
	assert.Empty(t, p.Rules)
	assert.Empty(t, p.Warnings)
}

func TestLoadRuleFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, profilePath, "# Profile\n")
	writeFile(t, fs, filepath.Join(rulesDir, "a.json"), `{"rules":[
		{"name":"Archive work emails","condition":{"field":"to","contains":"work@example.com"},"action":"delete"},
		{"name":"Tag receipts","condition":{"field":"subject","matches":"receipt|invoice","and":{"field":"from","contains":"shop"}},"action":{"label":"Receipts"}}
	]}`)
	writeFile(t, fs, filepath.Join(rulesDir, "b.yaml"), `
rules:
  - name: Newsletters
    condition:
      field: from
      equals: news@example.com
    action: archive
`)
	writeFile(t, fs, filepath.Join(rulesDir, "notes.txt"), "ignored")

	store := newTestStore(t, fs)
	p, err := store.Load()
	require.NoError(t, err)
	require.Len(t, p.Rules, 3)
	assert.Empty(t, p.Warnings)

	assert.Equal(t, "Archive work emails", p.Rules[0].Name)
	assert.Equal(t, core.ActionDelete, p.Rules[0].Action.Kind)
	assert.Equal(t, core.OpContains, p.Rules[0].Condition.Op)
	assert.Equal(t, "a.json", p.Rules[0].Source)

	require.NotNil(t, p.Rules[1].Condition.And)
	assert.Equal(t, core.FieldFrom, p.Rules[1].Condition.And.Field)
	assert.Equal(t, core.Action{Kind: core.ActionLabel, Label: "Receipts"}, p.Rules[1].Action)

	assert.Equal(t, core.OpEquals, p.Rules[2].Condition.Op)
	assert.Equal(t, "b.yaml", p.Rules[2].Source)
}

func TestLoadSkipsCorruptFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, filepath.Join(rulesDir, "bad.json"), `{"rules":[{"name":"x",`)
	writeFile(t, fs, filepath.Join(rulesDir, "invalid.json"), `{"rules":[{"name":"y","condition":{},"action":"explode"}]}`)
	writeFile(t, fs, filepath.Join(rulesDir, "good.json"), `{"rules":[{"name":"ok","condition":{"field":"from","contains":"a"},"action":"spam"}]}`)

	store := newTestStore(t, fs)
	p, err := store.Load()
	require.NoError(t, err)
	require.Len(t, p.Rules, 1)
	assert.Equal(t, "ok", p.Rules[0].Name)
	require.Len(t, p.Warnings, 2)

	var corrupt *core.ProfileCorruptError
	require.True(t, errors.As(p.Warnings[0], &corrupt))
	assert.Equal(t, filepath.Join(rulesDir, "bad.json"), corrupt.Path)
}

func TestLoadKeepsEmptyConditionForMatcher(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, filepath.Join(rulesDir, "user.json"), `{"rules":[{"name":"empty","condition":{},"action":"archive"}]}`)

	p, err := newTestStore(t, fs).Load()
	require.NoError(t, err)
	require.Len(t, p.Rules, 1)
	assert.Equal(t, core.Field(""), p.Rules[0].Condition.Field)
}

func TestLoadUnusable(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, profilePath, "  \n")
	writeFile(t, fs, filepath.Join(rulesDir, "bad.json"), `not json`)

	p, err := newTestStore(t, fs).Load()
	assert.ErrorIs(t, err, core.ErrProfileUnusable)
	require.NotNil(t, p)
	assert.Len(t, p.Warnings, 1)
}

func TestAppendRule(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newTestStore(t, fs)

	rule := core.Rule{
		Name:      "Work",
		Condition: core.Condition{Field: core.FieldTo, Op: core.OpContains, Value: "work@"},
		Action:    core.Action{Kind: core.ActionLabel, Label: "Work"},
	}
	require.NoError(t, store.AppendRule(rule))
	assert.Error(t, store.AppendRule(rule))

	p, err := store.Load()
	require.NoError(t, err)
	require.Len(t, p.Rules, 1)
	assert.Equal(t, "user.json", p.Rules[0].Source)
	assert.Equal(t, rule.Condition, p.Rules[0].Condition)
}

func TestSaveRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newTestStore(t, fs)

	in := &core.Profile{
		Text: "# Profile\n\n## Learned Corrections\n- one\n",
		Rules: []core.Rule{
			{Name: "r1", Condition: core.Condition{Field: core.FieldFrom, Op: core.OpEquals, Value: "a@b.c"}, Action: core.Action{Kind: core.ActionArchive}, Source: "work.yaml"},
			{Name: "r2", Condition: core.Condition{Field: core.FieldSubject, Op: core.OpMatches, Value: "^re:"}, Action: core.Action{Kind: core.ActionSpam}},
		},
	}
	require.NoError(t, store.Save(in))

	out, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, in.Text, out.Text)
	require.Len(t, out.Rules, 2)
	assert.Equal(t, "r2", out.Rules[0].Name)
	assert.Equal(t, "user.json", out.Rules[0].Source)
	assert.Equal(t, "r1", out.Rules[1].Name)
	assert.Equal(t, "work.yaml", out.Rules[1].Source)
}

func TestRewriteAndRemoveSection(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := newTestStore(t, fs)

	require.NoError(t, store.RewriteText("Learned Corrections", "- newsletters from acme are archived"))
	p, err := store.Load()
	require.NoError(t, err)
	body, ok := markdown.Section(p.Text, "Learned Corrections")
	require.True(t, ok)
	assert.Equal(t, "- newsletters from acme are archived", body)

	require.NoError(t, store.RewriteText("Shopping", "- receipts"))
	require.NoError(t, store.RemoveSection("Shopping"))
	require.NoError(t, store.RemoveSection("Shopping"))
	p, err = store.Load()
	require.NoError(t, err)
	assert.NotContains(t, p.Text, "Shopping")
}

// failingFs simulates a crash between writing the temp file and the rename
type failingFs struct {
	afero.Fs
	failRename bool
	failWrite  bool
}

type failingFile struct {
	afero.File
}

func (f failingFile) Write(p []byte) (int, error) {
	n, _ := f.File.Write(p[:len(p)/2])
	return n, errors.New("disk full")
}

func (f *failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil || !f.failWrite {
		return file, err
	}
	return failingFile{file}, nil
}

func (f *failingFs) Rename(oldname, newname string) error {
	if f.failRename {
		return errors.New("interrupted")
	}
	return f.Fs.Rename(oldname, newname)
}

func TestInterruptedWriteLeavesLoadableProfile(t *testing.T) {
	for _, tc := range []struct {
		name string
		fs   *failingFs
	}{
		{"rename", &failingFs{failRename: true}},
		{"write", &failingFs{failWrite: true}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			base := afero.NewMemMapFs()
			writeFile(t, base, profilePath, DefaultText)
			writeFile(t, base, filepath.Join(rulesDir, "user.json"), `{"rules":[{"name":"ok","condition":{"field":"from","contains":"a"},"action":"spam"}]}`)
			tc.fs.Fs = base
			store := newTestStore(t, tc.fs)

			err := store.Save(&core.Profile{
				Text:  "# Replaced\n",
				Rules: []core.Rule{{Name: "new", Condition: core.Condition{Field: core.FieldFrom, Op: core.OpContains, Value: "b"}, Action: core.Action{Kind: core.ActionArchive}}},
			})
			require.Error(t, err)

			p, err := newTestStore(t, base).Load()
			require.NoError(t, err)
			assert.Equal(t, DefaultText, p.Text)
			require.Len(t, p.Rules, 1)
			assert.Equal(t, "ok", p.Rules[0].Name)
			assert.Empty(t, p.Warnings)
		})
	}
}

func TestLoadIgnoresLeftoverTempFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, filepath.Join(rulesDir, ".user.json.123.tmp"), `{"rules":[{"na`)

	p, err := newTestStore(t, fs).Load()
	require.NoError(t, err)
	assert.Empty(t, p.Warnings)
}
