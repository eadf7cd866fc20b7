package app_test

import (
	"context"
	"testing"
	"time"

	"quiz-lobby-service/internal/app"
	"quiz-lobby-service/internal/domain"
)

func TestPerQuestionAdvanceWhenEveryoneAnswers(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, testPools(3), app.Config{
		QuestionCount: 3,
		Pacing:        domain.PacePerQuestion,
	})

	created, _ := service.CreateRoom(ctx, "Alice", "", 0, "conn-1")
	joined, _ := service.JoinRoom(ctx, created.RoomCode, "Bob", "", "conn-2")
	_ = service.StartQuiz(ctx, created.RoomCode, created.Token)

	if _, err := service.SubmitAnswer(ctx, created.RoomCode, created.Token, 0, "a", false); err != nil {
		t.Fatalf("alice: %v", err)
	}
	snap, _ := service.Snapshot(ctx, created.RoomCode)
	if snap.QuestionIndex != 0 {
		t.Fatalf("expected question held open for Bob, index=%d", snap.QuestionIndex)
	}

	if _, err := service.SubmitAnswer(ctx, created.RoomCode, joined.Token, 0, "b", false); err != nil {
		t.Fatalf("bob: %v", err)
	}
	snap, _ = service.Snapshot(ctx, created.RoomCode)
	if snap.Phase != domain.PhaseQuiz || snap.QuestionIndex != 1 {
		t.Fatalf("expected advance to question 1, got %s/%d", snap.Phase, snap.QuestionIndex)
	}
}

func TestPerQuestionLastAnswerEndsQuiz(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, testPools(2), app.Config{
		QuestionCount: 2,
		Pacing:        domain.PacePerQuestion,
	})

	created, _ := service.CreateRoom(ctx, "Alice", "", 0, "conn-1")
	_ = service.StartQuiz(ctx, created.RoomCode, created.Token)

	answerAll(t, service, created.RoomCode, created.Token, 2)

	snap, _ := service.Snapshot(ctx, created.RoomCode)
	if snap.Phase != domain.PhaseValidation || snap.QuestionIndex != 0 {
		t.Fatalf("expected validation at index 0 after last question, got %s/%d", snap.Phase, snap.QuestionIndex)
	}
}

func TestPerQuestionDeadlineForcesAdvance(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, testPools(2), app.Config{
		QuestionCount:   2,
		Pacing:          domain.PacePerQuestion,
		QuestionTimeout: 25 * time.Millisecond,
	})

	created, _ := service.CreateRoom(ctx, "Alice", "", 0, "conn-1")
	_ = service.StartQuiz(ctx, created.RoomCode, created.Token)

	// Nobody answers; the deadline alone must move the quiz forward.
	waitFor(t, func() bool {
		snap, err := service.Snapshot(ctx, created.RoomCode)
		return err == nil && snap.QuestionIndex == 1
	}, "deadline advance to question 1")

	waitFor(t, func() bool {
		snap, err := service.Snapshot(ctx, created.RoomCode)
		return err == nil && snap.Phase == domain.PhaseValidation
	}, "deadline close of last question")
}

func TestManualAdvanceCancelsStaleDeadline(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, testPools(2), app.Config{
		QuestionCount:   2,
		Pacing:          domain.PacePerQuestion,
		QuestionTimeout: 40 * time.Millisecond,
	})

	created, _ := service.CreateRoom(ctx, "Alice", "", 0, "conn-1")
	_ = service.StartQuiz(ctx, created.RoomCode, created.Token)

	// Answer immediately: the first question's timer must not fire later
	// against question 1.
	if _, err := service.SubmitAnswer(ctx, created.RoomCode, created.Token, 0, "a", false); err != nil {
		t.Fatalf("submit: %v", err)
	}
	snap, _ := service.Snapshot(ctx, created.RoomCode)
	if snap.QuestionIndex != 1 {
		t.Fatalf("expected manual advance, index=%d", snap.QuestionIndex)
	}

	// Within the original window the rearmed timer is still pending, so
	// question 1 stays open.
	time.Sleep(20 * time.Millisecond)
	snap, _ = service.Snapshot(ctx, created.RoomCode)
	if snap.Phase != domain.PhaseQuiz || snap.QuestionIndex != 1 {
		t.Fatalf("stale timer fired: %s/%d", snap.Phase, snap.QuestionIndex)
	}
}

func TestDeadlineAgainstDeletedRoomIsNoOp(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, testPools(1), app.Config{
		QuestionCount:   1,
		Pacing:          domain.PacePerQuestion,
		QuestionTimeout: 20 * time.Millisecond,
	})

	created, _ := service.CreateRoom(ctx, "Alice", "", 0, "conn-1")
	_ = service.StartQuiz(ctx, created.RoomCode, created.Token)
	service.Leave(ctx, created.RoomCode, created.Token)

	// Let the armed deadline elapse against the deleted room.
	time.Sleep(40 * time.Millisecond)
	if _, err := service.Snapshot(ctx, created.RoomCode); err == nil {
		t.Fatalf("expected room to stay deleted")
	}
}

func TestLateJoinerExemptFromEarlierQuestions(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, testPools(2), app.Config{
		QuestionCount: 2,
		Pacing:        domain.PacePerQuestion,
	})

	created, _ := service.CreateRoom(ctx, "Alice", "", 0, "conn-1")
	_ = service.StartQuiz(ctx, created.RoomCode, created.Token)
	if _, err := service.SubmitAnswer(ctx, created.RoomCode, created.Token, 0, "a", false); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Bob joins at question 1; his empty slot 0 must not block anything,
	// and question 1 needs both answers.
	joined, _ := service.JoinRoom(ctx, created.RoomCode, "Bob", "", "conn-2")
	if _, err := service.SubmitAnswer(ctx, created.RoomCode, created.Token, 1, "a", false); err != nil {
		t.Fatalf("alice q1: %v", err)
	}
	snap, _ := service.Snapshot(ctx, created.RoomCode)
	if snap.Phase != domain.PhaseQuiz {
		t.Fatalf("expected quiz to wait for Bob, got %s", snap.Phase)
	}

	if _, err := service.SubmitAnswer(ctx, created.RoomCode, joined.Token, 1, "b", false); err != nil {
		t.Fatalf("bob q1: %v", err)
	}
	snap, _ = service.Snapshot(ctx, created.RoomCode)
	if snap.Phase != domain.PhaseValidation {
		t.Fatalf("expected validation once current players answered, got %s", snap.Phase)
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
