package main

import (
	"errors"
	"testing"
)

func twoQuestions() []Question {
	return []Question{
		{Text: "ab", Answer: "first"},
		{Text: "cd", Answer: "second"},
	}
}

// drive applies a sequence of transitions that must all succeed.
func drive(t *testing.T, s *Session, steps ...func() error) {
	t.Helper()

	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("setup step %d failed: %v", i, err)
		}
	}
}

func TestAdvanceQuestion(t *testing.T) {
	s := newSession(twoQuestions())

	if s.phase != PhaseInit {
		t.Fatalf("fresh session phase = %q, want %q", s.phase, PhaseInit)
	}
	if !s.buzzLocked {
		t.Fatal("fresh session should have buzzing locked")
	}

	if err := s.AdvanceQuestion(); err != nil {
		t.Fatalf("AdvanceQuestion from init: %v", err)
	}

	if s.phase != PhaseAsking {
		t.Errorf("phase = %q, want %q", s.phase, PhaseAsking)
	}
	if s.round != 1 {
		t.Errorf("round = %d, want 1", s.round)
	}
	if s.buzzLocked {
		t.Error("buzzing should be open after advance")
	}
	if s.activeResponder != "" {
		t.Errorf("activeResponder = %q, want empty", s.activeResponder)
	}
}

func TestAdvancePastLastQuestionRejected(t *testing.T) {
	s := newSession([]Question{{Text: "only", Answer: "one"}})

	drive(t, s,
		s.AdvanceQuestion,
		s.TimeoutQuestion,
	)
	if _, _, err := s.MarkCorrect(); err != nil {
		t.Fatalf("MarkCorrect: %v", err)
	}

	if s.phase != PhaseAllDone {
		t.Fatalf("phase after judging last question = %q, want %q", s.phase, PhaseAllDone)
	}

	if err := s.AdvanceQuestion(); !errors.Is(err, errActionNotAllowed) {
		t.Errorf("AdvanceQuestion past last question = %v, want errActionNotAllowed", err)
	}
	if s.round != 1 {
		t.Errorf("round = %d, want 1 (must never exceed question count)", s.round)
	}
}

func TestBuzzArbitration(t *testing.T) {
	s := newSession(twoQuestions())

	// Not buzzable before the first question.
	if err := s.Buzz("a"); !errors.Is(err, errActionNotAllowed) {
		t.Errorf("Buzz in init = %v, want errActionNotAllowed", err)
	}

	drive(t, s, s.AdvanceQuestion)

	if err := s.Buzz("a"); err != nil {
		t.Fatalf("first buzz: %v", err)
	}
	if s.phase != PhaseBuzzed || s.activeResponder != "a" || !s.buzzLocked {
		t.Fatalf("after buzz: phase=%q responder=%q locked=%v", s.phase, s.activeResponder, s.buzzLocked)
	}

	// Everything after the lock loses.
	if err := s.Buzz("b"); !errors.Is(err, errTooLate) {
		t.Errorf("second buzz = %v, want errTooLate", err)
	}
	if s.activeResponder != "a" {
		t.Errorf("losing buzz changed responder to %q", s.activeResponder)
	}
}

func TestBuzzAfterTimeoutTooLate(t *testing.T) {
	s := newSession(twoQuestions())

	drive(t, s, s.AdvanceQuestion, s.TimeoutQuestion)

	if err := s.Buzz("a"); !errors.Is(err, errTooLate) {
		t.Errorf("Buzz after timeout = %v, want errTooLate", err)
	}
}

func TestWrongThenResume(t *testing.T) {
	s := newSession(twoQuestions())

	drive(t, s, s.AdvanceQuestion)
	if err := s.Buzz("a"); err != nil {
		t.Fatalf("Buzz: %v", err)
	}

	if err := s.MarkWrong(); err != nil {
		t.Fatalf("MarkWrong: %v", err)
	}
	if s.phase != PhaseWrong || s.activeResponder != "" {
		t.Fatalf("after wrong: phase=%q responder=%q", s.phase, s.activeResponder)
	}
	if !s.buzzLocked {
		t.Error("buzzing must stay locked until resume")
	}

	if err := s.ResumeAsking(); err != nil {
		t.Fatalf("ResumeAsking: %v", err)
	}
	if s.phase != PhaseAsking || s.buzzLocked {
		t.Fatalf("after resume: phase=%q locked=%v", s.phase, s.buzzLocked)
	}

	// The floor reopens for anyone, including the previous responder.
	if err := s.Buzz("b"); err != nil {
		t.Errorf("rebuzz after resume: %v", err)
	}
}

func TestMarkCorrectFromBuzzedAwardsResponder(t *testing.T) {
	s := newSession(twoQuestions())

	drive(t, s, s.AdvanceQuestion)
	if err := s.Buzz("a"); err != nil {
		t.Fatalf("Buzz: %v", err)
	}

	awarded, last, err := s.MarkCorrect()
	if err != nil {
		t.Fatalf("MarkCorrect: %v", err)
	}
	if awarded != "a" {
		t.Errorf("awarded = %q, want %q", awarded, "a")
	}
	if last {
		t.Error("first of two questions should not be last")
	}
	if s.phase != PhaseShowAnswer {
		t.Errorf("phase = %q, want %q", s.phase, PhaseShowAnswer)
	}
}

func TestMarkCorrectFromTimeoutAwardsNoOne(t *testing.T) {
	s := newSession(twoQuestions())

	drive(t, s, s.AdvanceQuestion, s.TimeoutQuestion)

	awarded, _, err := s.MarkCorrect()
	if err != nil {
		t.Fatalf("MarkCorrect: %v", err)
	}
	if awarded != "" {
		t.Errorf("awarded = %q, want no one", awarded)
	}
}

func TestClearDisplayKeepsRound(t *testing.T) {
	s := newSession(twoQuestions())

	drive(t, s, s.AdvanceQuestion, s.TimeoutQuestion)
	if _, _, err := s.MarkCorrect(); err != nil {
		t.Fatalf("MarkCorrect: %v", err)
	}

	if err := s.ClearDisplay(); err != nil {
		t.Fatalf("ClearDisplay: %v", err)
	}
	if s.phase != PhaseInit {
		t.Errorf("phase = %q, want %q", s.phase, PhaseInit)
	}
	if s.round != 1 {
		t.Errorf("round = %d, want 1 (clear must not change the counter)", s.round)
	}

	snap := s.Snapshot()
	if snap.HasQuestion || snap.RevealedQuestion != "" {
		t.Errorf("display not cleared: %+v", snap)
	}
}

func TestRevealProgression(t *testing.T) {
	s := newSession([]Question{{Text: "abc", Answer: "x"}})

	drive(t, s, s.AdvanceQuestion)

	for i, want := range []string{"a", "b", "c"} {
		c, ok := s.RevealNext()
		if !ok || c != want {
			t.Fatalf("reveal %d = %q/%v, want %q", i, c, ok, want)
		}
	}

	if _, ok := s.RevealNext(); ok {
		t.Error("RevealNext past end of text should report done")
	}
	if s.HasMoreText() {
		t.Error("HasMoreText after full reveal")
	}

	if got := s.Snapshot().RevealedQuestion; got != "abc" {
		t.Errorf("revealed prefix = %q, want %q", got, "abc")
	}
}

func TestRevealPausesOutsideAsking(t *testing.T) {
	s := newSession([]Question{{Text: "abc", Answer: "x"}})

	drive(t, s, s.AdvanceQuestion)
	if _, ok := s.RevealNext(); !ok {
		t.Fatal("first reveal")
	}
	if err := s.Buzz("a"); err != nil {
		t.Fatalf("Buzz: %v", err)
	}

	if _, ok := s.RevealNext(); ok {
		t.Error("RevealNext must not advance while buzzed")
	}

	// The snapshot shows only the revealed prefix until judged.
	if got := s.Snapshot().RevealedQuestion; got != "a" {
		t.Errorf("revealed prefix while buzzed = %q, want %q", got, "a")
	}
	if got := s.Snapshot().RevealedAnswer; got != "" {
		t.Errorf("answer leaked before judging: %q", got)
	}
}

func TestSnapshotAfterJudgingRevealsAll(t *testing.T) {
	s := newSession(twoQuestions())

	drive(t, s, s.AdvanceQuestion)
	if err := s.Buzz("a"); err != nil {
		t.Fatalf("Buzz: %v", err)
	}
	if _, _, err := s.MarkCorrect(); err != nil {
		t.Fatalf("MarkCorrect: %v", err)
	}

	snap := s.Snapshot()
	if snap.RevealedQuestion != "ab" || snap.RevealedAnswer != "first" {
		t.Errorf("snapshot after judge = %+v, want full question and answer", snap)
	}
}

func TestReleaseBuzz(t *testing.T) {
	s := newSession(twoQuestions())

	drive(t, s, s.AdvanceQuestion)
	if err := s.Buzz("a"); err != nil {
		t.Fatalf("Buzz: %v", err)
	}

	if s.ReleaseBuzz("b") {
		t.Error("releasing someone else's buzz should be a no-op")
	}
	if !s.ReleaseBuzz("a") {
		t.Fatal("holder release should succeed")
	}
	if s.phase != PhaseAsking || s.buzzLocked || s.activeResponder != "" {
		t.Errorf("after release: phase=%q locked=%v responder=%q", s.phase, s.buzzLocked, s.activeResponder)
	}
}

func TestEndGameFromAnyNonTerminalPhase(t *testing.T) {
	setups := map[string]func(s *Session){
		"init":   func(s *Session) {},
		"asking": func(s *Session) { drive(t, s, s.AdvanceQuestion) },
		"buzzed": func(s *Session) {
			drive(t, s, s.AdvanceQuestion)
			if err := s.Buzz("a"); err != nil {
				t.Fatalf("Buzz: %v", err)
			}
		},
		"timeout": func(s *Session) { drive(t, s, s.AdvanceQuestion, s.TimeoutQuestion) },
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			s := newSession(twoQuestions())
			setup(s)

			if err := s.EndGame(); err != nil {
				t.Fatalf("EndGame from %s: %v", name, err)
			}
			if s.phase != PhaseFinished {
				t.Errorf("phase = %q, want %q", s.phase, PhaseFinished)
			}

			// Terminal: nothing else is legal.
			if err := s.EndGame(); !errors.Is(err, errActionNotAllowed) {
				t.Errorf("EndGame twice = %v, want errActionNotAllowed", err)
			}
			if err := s.AdvanceQuestion(); !errors.Is(err, errActionNotAllowed) {
				t.Errorf("AdvanceQuestion after end = %v, want errActionNotAllowed", err)
			}
		})
	}
}

func TestIllegalTransitionsLeaveStateUntouched(t *testing.T) {
	s := newSession(twoQuestions())
	drive(t, s, s.AdvanceQuestion)
	before := s.Snapshot()

	illegal := []func() error{
		s.MarkWrong,
		s.ResumeAsking,
		s.ClearDisplay,
		s.AdvanceQuestion,
	}
	for i, cmd := range illegal {
		if err := cmd(); !errors.Is(err, errActionNotAllowed) {
			t.Errorf("illegal command %d = %v, want errActionNotAllowed", i, err)
		}
	}

	if after := s.Snapshot(); after != before {
		t.Errorf("rejected commands mutated state: before=%+v after=%+v", before, after)
	}
}
