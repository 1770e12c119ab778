package triviaapi

import (
	"errors"
	"fmt"
	"math/rand"

	"trivia-quiz-service/internal/domain"
)

// BuildQuestions converts provider items into shuffled multiple choice
// questions. Items without a correct answer, without distractors, or listing
// the correct answer among the distractors are rejected as malformed.
func BuildQuestions(raw []RawQuestion) ([]domain.Question, error) {
	questions := make([]domain.Question, 0, len(raw))
	for i, item := range raw {
		question, err := buildQuestion(item)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", domain.ErrFetchFailed, i, err)
		}
		questions = append(questions, question)
	}
	return questions, nil
}

func buildQuestion(item RawQuestion) (domain.Question, error) {
	if item.CorrectAnswer == "" {
		return domain.Question{}, errors.New("missing correct answer")
	}
	if len(item.IncorrectAnswers) == 0 {
		return domain.Question{}, errors.New("missing incorrect answers")
	}

	options := make([]string, 0, len(item.IncorrectAnswers)+1)
	for _, incorrect := range item.IncorrectAnswers {
		if incorrect == item.CorrectAnswer {
			return domain.Question{}, errors.New("correct answer listed as incorrect")
		}
		options = append(options, incorrect)
	}
	options = append(options, item.CorrectAnswer)

	rand.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return domain.Question{
		Prompt:        string(item.Question),
		Options:       options,
		CorrectAnswer: item.CorrectAnswer,
	}, nil
}
