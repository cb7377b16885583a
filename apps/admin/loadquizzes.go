package main

import (
	"context"

	"github.com/trezcool/virtuallab/core/quiz"
	"github.com/trezcool/virtuallab/storage/database"
)

func (cli *commandLine) loadQuizzes(filePath string) error {
	var defs []quiz.Definition
	if filePath != "" {
		def, err := database.LoadQuizFile(filePath)
		if err != nil {
			return err
		}
		defs = append(defs, def)
	} else {
		var err error
		if defs, err = database.SeedQuizzes(); err != nil {
			return err
		}
	}

	if err := database.PutQuizzes(context.Background(), cli.quizRepo, defs...); err != nil {
		return err
	}
	for _, def := range defs {
		cli.printf("quiz %s loaded (%d points)\n", def.LabID, def.MaxScore())
	}
	return nil
}
