package main

// Phase is the state of a room's quiz session. The hub exposes phase,
// not derived button flags, as the source of truth; clients derive
// their affordances from it.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseAsking     Phase = "asking"
	PhaseBuzzed     Phase = "buzzed"
	PhaseWrong      Phase = "wrong"
	PhaseTimeout    Phase = "timeout"
	PhaseShowAnswer Phase = "show_answer"
	PhaseAllDone    Phase = "all_done"
	PhaseFinished   Phase = "finished"
)

// Question is one quiz item. Text is streamed to members one rune at a
// time; Answer stays hidden until the round is judged.
type Question struct {
	Text   string
	Answer string
}

// Session is the finite-state core of one room. It is owned by the
// room's hub and mutated only from the hub's run loop, which serializes
// every accepted command and buzz attempt into a strict total order.
// Every method either applies cleanly or returns an error leaving the
// session untouched.
type Session struct {
	phase     Phase
	round     int // 1-based, monotonic, never exceeds len(questions)
	questions []Question

	hasQuestion     bool // false before the first question and after clear_display
	revealed        int  // runes of the current question revealed so far
	activeResponder string
	buzzLocked      bool
}

func newSession(questions []Question) *Session {
	return &Session{
		phase:      PhaseInit,
		questions:  questions,
		buzzLocked: true,
	}
}

func (s *Session) current() Question {
	return s.questions[s.round-1]
}

func (s *Session) questionRunes() []rune {
	return []rune(s.current().Text)
}

// AdvanceQuestion moves to the next question and reopens buzzing.
// Rejected once the question list is exhausted, so the round counter
// never exceeds the configured question count.
func (s *Session) AdvanceQuestion() error {
	if s.phase != PhaseInit && s.phase != PhaseShowAnswer {
		return errActionNotAllowed
	}
	if s.round >= len(s.questions) {
		return errActionNotAllowed
	}

	s.round++
	s.hasQuestion = true
	s.revealed = 0
	s.activeResponder = ""
	s.buzzLocked = false
	s.phase = PhaseAsking

	return nil
}

// RevealNext yields the next rune of the current question, or false
// when streaming is paused or the text is fully revealed.
func (s *Session) RevealNext() (string, bool) {
	if s.phase != PhaseAsking {
		return "", false
	}

	text := s.questionRunes()
	if s.revealed >= len(text) {
		return "", false
	}

	c := text[s.revealed]
	s.revealed++

	return string(c), true
}

// HasMoreText reports whether streaming still has runes to deliver.
func (s *Session) HasMoreText() bool {
	return s.phase == PhaseAsking && s.revealed < len(s.questionRunes())
}

// Buzz arbitrates an attempt to take the floor. The first attempt the
// hub serializes wins; everything after the lock is rejected with
// errTooLate and has no visible effect.
func (s *Session) Buzz(identity string) error {
	switch {
	case s.phase == PhaseAsking && !s.buzzLocked:
		s.activeResponder = identity
		s.buzzLocked = true
		s.phase = PhaseBuzzed
		return nil
	case s.phase == PhaseBuzzed, s.phase == PhaseTimeout, s.phase == PhaseAsking:
		return errTooLate
	default:
		return errActionNotAllowed
	}
}

// ReleaseBuzz returns the floor to the field when the holder drops off
// mid-question, reopening buzzing on the partially revealed text.
func (s *Session) ReleaseBuzz(identity string) bool {
	if s.phase != PhaseBuzzed || s.activeResponder != identity {
		return false
	}

	s.activeResponder = ""
	s.buzzLocked = false
	s.phase = PhaseAsking

	return true
}

// TimeoutQuestion ends buzzing on the current question without a
// responder.
func (s *Session) TimeoutQuestion() error {
	if s.phase != PhaseAsking {
		return errActionNotAllowed
	}

	s.activeResponder = ""
	s.buzzLocked = true
	s.phase = PhaseTimeout

	return nil
}

// MarkWrong clears the floor after an incorrect response. Buzzing stays
// locked until the moderator resumes.
func (s *Session) MarkWrong() error {
	if s.phase != PhaseBuzzed {
		return errActionNotAllowed
	}

	s.activeResponder = ""
	s.phase = PhaseWrong

	return nil
}

// ResumeAsking reopens buzzing after a wrong answer. The question text
// stays at its current offset and continues streaming.
func (s *Session) ResumeAsking() error {
	if s.phase != PhaseWrong {
		return errActionNotAllowed
	}

	s.activeResponder = ""
	s.buzzLocked = false
	s.phase = PhaseAsking

	return nil
}

// MarkCorrect judges the current question. From buzzed the floor holder
// is awarded; from timeout no one is. Judging the final question lands
// in all_done instead of show_answer.
func (s *Session) MarkCorrect() (awarded string, last bool, err error) {
	if s.phase != PhaseBuzzed && s.phase != PhaseTimeout {
		return "", false, errActionNotAllowed
	}

	awarded = s.activeResponder
	s.activeResponder = ""
	s.buzzLocked = true

	if s.round >= len(s.questions) {
		s.phase = PhaseAllDone
		last = true
	} else {
		s.phase = PhaseShowAnswer
	}

	return awarded, last, nil
}

// ClearDisplay blanks the question display between rounds. The round
// counter is not changed.
func (s *Session) ClearDisplay() error {
	if s.phase != PhaseShowAnswer {
		return errActionNotAllowed
	}

	s.hasQuestion = false
	s.revealed = 0
	s.activeResponder = ""
	s.buzzLocked = true
	s.phase = PhaseInit

	return nil
}

// EndGame freezes the session. Legal from any non-terminal phase.
func (s *Session) EndGame() error {
	if s.phase == PhaseFinished {
		return errActionNotAllowed
	}

	s.activeResponder = ""
	s.buzzLocked = true
	s.phase = PhaseFinished

	return nil
}

// SessionSnapshot is the authoritative state replayed to a (re)joining
// client so it converges without replaying history.
type SessionSnapshot struct {
	Phase            Phase
	Round            int
	RevealedQuestion string
	RevealedAnswer   string
	ActiveResponder  string
	BuzzLocked       bool
	HasQuestion      bool
	AllAsked         bool
}

func (s *Session) Snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		Phase:           s.phase,
		Round:           s.round,
		ActiveResponder: s.activeResponder,
		BuzzLocked:      s.buzzLocked,
		HasQuestion:     s.hasQuestion,
		AllAsked:        s.phase == PhaseAllDone,
	}

	if !s.hasQuestion {
		return snap
	}

	switch s.phase {
	case PhaseShowAnswer, PhaseAllDone:
		snap.RevealedQuestion = s.current().Text
		snap.RevealedAnswer = s.current().Answer
	default:
		snap.RevealedQuestion = string(s.questionRunes()[:s.revealed])
	}

	return snap
}
