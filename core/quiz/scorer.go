package quiz

import (
	"strings"

	"golang.org/x/text/cases"
)

// Score grades answers against the question bank of def.
// Multiple choice answers must match the correct option index exactly.
// Short answers match when the trimmed, case folded answer equals the case folded canonical answer.
// Missing, nil or out of range answers earn nothing.
func Score(answers Answers, def Definition) Result {
	var res Result

	for i, q := range def.MultipleChoice {
		if i >= len(answers.MultipleChoice) || answers.MultipleChoice[i] == nil {
			continue
		}
		if *answers.MultipleChoice[i] == q.CorrectAnswer {
			res.MultipleChoice += MultipleChoicePoints
		}
	}

	for i, q := range def.ShortAnswer {
		if i >= len(answers.ShortAnswer) || answers.ShortAnswer[i] == nil {
			continue
		}
		if fold(strings.TrimSpace(*answers.ShortAnswer[i])) == fold(q.CorrectAnswer) {
			res.ShortAnswer += ShortAnswerPoints
		}
	}

	res.Total = res.MultipleChoice + res.ShortAnswer
	res.Max = def.MaxScore()
	res.Passed = res.Total >= PassThreshold
	return res
}

// a Caser keeps state, so one is built per call
func fold(s string) string {
	return cases.Fold().String(s)
}
