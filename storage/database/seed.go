package database

import (
	"context"
	"embed"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/virtuallab/core/quiz"
)

//go:embed seeds/*.yaml
var seedsFS embed.FS

// ParseQuiz decodes one YAML quiz definition.
func ParseQuiz(r io.Reader) (quiz.Definition, error) {
	var def quiz.Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return quiz.Definition{}, errors.Wrap(err, "decoding quiz")
	}
	if err := def.Validate(); err != nil {
		return quiz.Definition{}, err
	}
	return def, nil
}

// SeedQuizzes parses every quiz shipped with the binary.
func SeedQuizzes() ([]quiz.Definition, error) {
	entries, err := fs.ReadDir(seedsFS, "seeds")
	if err != nil {
		return nil, errors.Wrap(err, "reading seeds")
	}
	defs := make([]quiz.Definition, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".yaml" {
			continue
		}
		f, err := seedsFS.Open(path.Join("seeds", entry.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", entry.Name())
		}
		def, err := ParseQuiz(f)
		_ = f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", entry.Name())
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadQuizFile parses the YAML quiz definition at filePath.
func LoadQuizFile(filePath string) (quiz.Definition, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return quiz.Definition{}, errors.Wrap(err, "opening quiz file")
	}
	defer func() { _ = f.Close() }()
	return ParseQuiz(f)
}

// PutQuizzes upserts defs into repo.
func PutQuizzes(ctx context.Context, repo quiz.Repository, defs ...quiz.Definition) error {
	for _, def := range defs {
		if err := repo.PutQuiz(ctx, def); err != nil {
			return errors.Wrapf(err, "putting quiz %s", def.LabID)
		}
	}
	return nil
}
