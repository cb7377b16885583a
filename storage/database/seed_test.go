package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/virtuallab/core/quiz"
)

func TestSeedQuizzes(t *testing.T) {
	defs, err := SeedQuizzes()
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "quadratic", def.LabID)
	assert.Len(t, def.MultipleChoice, 3)
	assert.Len(t, def.ShortAnswer, 2)
	assert.Equal(t, 17, def.MaxScore())
}

func TestParseQuiz(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{
			name: "valid",
			doc: `
lab_id: linear
title: Fungsi Linear
multiple_choice:
  - id: 1
    question: Gradien y = 2x + 1?
    options: ["1", "2", "3"]
    correct_answer: 2
short_answer:
  - id: 2
    question: Nama grafik y = mx + c?
    correct_answer: garis
`,
		},
		{name: "unknown field", doc: "lab_id: linear\ntitle: x\nanswers: []\n", wantErr: true},
		{name: "bad lab id", doc: "lab_id: Linear Lab\ntitle: x\n", wantErr: true},
		{
			name:    "answer past options",
			doc:     "lab_id: linear\ntitle: x\nmultiple_choice:\n  - id: 1\n    options: [\"1\", \"2\"]\n    correct_answer: 3\n",
			wantErr: true,
		},
		{name: "not yaml", doc: "{{", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def, err := ParseQuiz(strings.NewReader(tc.doc))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "linear", def.LabID)
			assert.Equal(t, 2, def.MultipleChoice[0].CorrectAnswer)
			assert.Equal(t, "garis", def.ShortAnswer[0].CorrectAnswer)
		})
	}
}

func TestLoadQuizFile(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "q.yaml")
	require.NoError(t, os.WriteFile(fpath, []byte("lab_id: empty\ntitle: Kosong\n"), 0o600))

	def, err := LoadQuizFile(fpath)
	require.NoError(t, err)
	assert.Equal(t, quiz.Definition{LabID: "empty", Title: "Kosong"}, def)

	_, err = LoadQuizFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
