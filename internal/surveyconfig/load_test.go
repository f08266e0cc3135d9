package surveyconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsurvey/internal/model"
)

func TestLoad_YAMLKeepsOrder(t *testing.T) {
	cfg, report, err := Load(filepath.Join("testdata", "survey.yaml"))
	require.NoError(t, err)
	require.True(t, report.OK())
	assert.Empty(t, report.Warnings)

	assert.Equal(t, "civic-pulse", cfg.Survey.ID)
	assert.Equal(t, []string{"b0", "b1", "b2", "b3"}, cfg.Blocks.Keys())

	b1, ok := cfg.Block("b1")
	require.True(t, ok)
	assert.Equal(t, model.BlockSingleChoice, b1.Type)
	require.Len(t, b1.Options, 2)
	assert.Equal(t, "b2", b1.Options[0].Next)

	b2, _ := cfg.Block("b2")
	assert.True(t, b2.Content.Keyed())
	assert.Equal(t, []string{"b1"}, cfg.Progress.MainPath)
}

func TestParse_JSONAndSniffing(t *testing.T) {
	doc := []byte(`{"blocks": {"z": {"type": "text-input", "content": "Name?", "next": "a"}, "a": {"type": "end"}}}`)

	cfg, report, err := Parse(doc, "")
	require.NoError(t, err)
	assert.True(t, report.OK())
	first, _ := cfg.FirstBlockID()
	assert.Equal(t, "z", first)
}

func TestParse_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown block type", `{"blocks": {"b1": {"type": "carousel"}}}`},
		{"missing type", `{"blocks": {"b1": {"content": "hi"}}}`},
		{"negative maxSelections", `{"blocks": {"b1": {"type": "ranking", "maxSelections": -1}}}`},
		{"content not text", `{"blocks": {"b1": {"type": "end", "content": 3}}}`},
		{"blocks missing", `{"survey": {"id": "x"}}`},
		{"unknown derive op", `{"blocks": {"b1": {"type": "text-input", "derivedVariables": [{"op": "eval"}]}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, report, err := Parse([]byte(tt.doc), FormatJSON)
			require.ErrorIs(t, err, ErrInvalidSurvey)
			require.NotNil(t, report)
			assert.NotEmpty(t, report.Errors)
		})
	}
}

func TestParse_EmptyBlocks(t *testing.T) {
	_, report, err := Parse([]byte(`{"blocks": {}}`), FormatJSON)
	require.ErrorIs(t, err, ErrInvalidSurvey)
	assert.Equal(t, "blocks", report.Errors[0].Path)
}

func TestParse_MalformedYAML(t *testing.T) {
	_, _, err := Parse([]byte("blocks: [unclosed"), FormatYAML)
	require.ErrorIs(t, err, ErrInvalidSurvey)
}

func TestParse_ReferenceWarnings(t *testing.T) {
	doc := `
blocks:
  b1:
    type: single-choice
    options:
      - {value: a, next: nowhere}
    conditionalNext:
      if: {equals: a}
      then: b2
      else: {if: {equals: b}, then: ghost, else: b2}
  b2:
    type: scale
    content: {yes: Great}
    contentCondition: {if: {equals: 1}, then: yes, else: no}
    onEmpty: {next: missing}
progress:
  mainPath: [b1, b9]
`
	cfg, report, err := Parse([]byte(doc), FormatYAML)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	var paths []string
	for _, w := range report.Warnings {
		paths = append(paths, w.Path)
	}
	assert.ElementsMatch(t, []string{
		"blocks.b1.conditionalNext",
		"blocks.b1.options[0].next",
		"blocks.b2.contentCondition",
		"blocks.b2.onEmpty.next",
		"progress.mainPath[1]",
	}, paths)
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
