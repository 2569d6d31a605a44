package memory

import (
	"context"
	"testing"
	"time"

	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/domain"
)

func TestContentRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewContentRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestContentRepositoryMissIsNotCached(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(nil)}
	repo := NewContentRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != domain.ErrQuizNotFound {
		t.Fatalf("expected quiz-not-found, got %v", err)
	}
	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != domain.ErrQuizNotFound {
		t.Fatalf("expected quiz-not-found again, got %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("misses must reach the loader every time, calls %d", loader.calls)
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{
				ID:           "q1",
				Text:         "What is 2 + 2?",
				TimeLimitSec: 30,
				Multiplier:   1,
				Options: []domain.AnswerOption{
					{ID: "o1", Text: "3", Order: 0},
					{ID: "o2", Text: "4", Order: 1, Correct: true},
				},
			},
		},
	}
}
