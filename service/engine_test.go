package service

import (
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/boltdb/bolt"

	"github.com/joinguard/joinguard/model"
)

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled map[model.RecordKey]time.Time
	cancelled map[model.RecordKey]int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		scheduled: make(map[model.RecordKey]time.Time),
		cancelled: make(map[model.RecordKey]int),
	}
}

func (s *fakeScheduler) Schedule(key model.RecordKey, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled[key] = at
}

func (s *fakeScheduler) Cancel(key model.RecordKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled[key]++
}

type fakeDirectives struct {
	mu        sync.Mutex
	admits    int
	restricts int
	kicks     int
	presents  int
	reissues  int
}

func (d *fakeDirectives) Admit(chatID, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.admits++
	return nil
}

func (d *fakeDirectives) Restrict(chatID, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.restricts++
	return nil
}

func (d *fakeDirectives) Kick(chatID, userID int64, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kicks++
	return nil
}

func (d *fakeDirectives) PresentChallenge(rec *model.VerificationRecord, attemptsLeft int, reissued bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presents++
	if reissued {
		d.reissues++
	}
	return nil
}

// fakeGenerator always issues a puzzle whose answer is "4".
type fakeGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *fakeGenerator) Generate(difficulty model.Difficulty) (*model.Challenge, error) {
	g.mu.Lock()
	g.calls++
	token := "tok" + strconv.Itoa(g.calls)
	g.mu.Unlock()
	return &model.Challenge{
		Token:      token,
		Question:   "2 + 2 = ?",
		Options:    []int{3, 4, 5, 6},
		AnswerHash: model.HashAnswer(token, "4"),
		Difficulty: difficulty,
		IssuedAt:   time.Now(),
	}, nil
}

func (g *fakeGenerator) Check(c *model.Challenge, answer string) bool {
	return c.CheckAnswer(answer)
}

type testEngine struct {
	eng       *Engine
	store     *Store
	scheduler *fakeScheduler
	out       *fakeDirectives
	gen       *fakeGenerator
	now       time.Time
}

func newTestEngine(t *testing.T, cfg EngineConfig) *testEngine {
	t.Helper()
	database, err := bolt.Open(filepath.Join(t.TempDir(), "bolt.db"), 0600, nil)
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	te := &testEngine{
		store:     NewStore(database),
		scheduler: newFakeScheduler(),
		out:       &fakeDirectives{},
		gen:       &fakeGenerator{},
		now:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	te.eng = NewEngine(te.store, te.scheduler, te.gen, te.out, cfg)
	te.eng.now = func() time.Time { return te.now }
	return te
}

func defaultConfig() EngineConfig {
	return EngineConfig{
		MinAccountAgeDays:      30,
		MaxCaptchaAttempts:     3,
		HardCaptchaAttempts:    1,
		RiskScoreToHardCaptcha: 100,
		ChallengeTimeout:       5 * time.Minute,
	}
}

func joinEvent(te *testEngine, ageDays int) JoinEvent {
	created := te.now.AddDate(0, 0, -ageDays)
	return JoinEvent{
		ChatID:           -100,
		UserID:           7_000_000_001,
		Username:         "somebody",
		FirstName:        "Some",
		LastName:         "Body",
		AccountCreatedAt: &created,
	}
}

func mustGet(t *testing.T, te *testEngine, key model.RecordKey) *model.VerificationRecord {
	t.Helper()
	rec, err := te.store.Get(key)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	return rec
}

func TestAgeGateBoundary(t *testing.T) {
	te := newTestEngine(t, defaultConfig())
	ev := joinEvent(te, 30)
	if err := te.eng.OnJoin(ev); err != nil {
		t.Fatalf("on join: %v", err)
	}
	rec := mustGet(t, te, model.RecordKey{ChatID: ev.ChatID, UserID: ev.UserID})
	if rec.State != model.StateAwaitingAnswer {
		t.Fatalf("account aged exactly at the threshold must get a challenge, state=%v", rec.State)
	}
	if te.out.kicks != 0 || te.out.restricts != 1 || te.out.presents != 1 {
		t.Fatalf("unexpected directives: kicks=%d restricts=%d presents=%d", te.out.kicks, te.out.restricts, te.out.presents)
	}
}

func TestAgeGateTooNew(t *testing.T) {
	te := newTestEngine(t, defaultConfig())
	ev := joinEvent(te, 29)
	if err := te.eng.OnJoin(ev); err != nil {
		t.Fatalf("on join: %v", err)
	}
	rec := mustGet(t, te, model.RecordKey{ChatID: ev.ChatID, UserID: ev.UserID})
	if rec.State != model.StateFailed || rec.Resolution != model.ResolutionTooNewAccount {
		t.Fatalf("expected failed/too_new, got %v/%v", rec.State, rec.Resolution)
	}
	if te.gen.calls != 0 {
		t.Fatalf("no challenge may be generated for a too-new account, got %d", te.gen.calls)
	}
	if te.out.kicks != 1 || te.out.presents != 0 {
		t.Fatalf("expected one kick and no challenge, kicks=%d presents=%d", te.out.kicks, te.out.presents)
	}
}

func TestAgeGateUnknownCreationTime(t *testing.T) {
	te := newTestEngine(t, defaultConfig())
	ev := joinEvent(te, 90)
	ev.AccountCreatedAt = nil
	if err := te.eng.OnJoin(ev); err != nil {
		t.Fatalf("on join: %v", err)
	}
	rec := mustGet(t, te, model.RecordKey{ChatID: ev.ChatID, UserID: ev.UserID})
	if rec.State != model.StateFailed {
		t.Fatalf("unknown account age must fail the gate, state=%v", rec.State)
	}
}

func TestJoinIdempotent(t *testing.T) {
	te := newTestEngine(t, defaultConfig())
	ev := joinEvent(te, 40)
	key := model.RecordKey{ChatID: ev.ChatID, UserID: ev.UserID}
	if err := te.eng.OnJoin(ev); err != nil {
		t.Fatalf("on join: %v", err)
	}
	if err := te.eng.OnAnswer(AnswerEvent{ChatID: ev.ChatID, UserID: ev.UserID, Answer: "5"}); err != nil {
		t.Fatalf("on answer: %v", err)
	}
	if rec := mustGet(t, te, key); rec.AttemptsUsed != 1 {
		t.Fatalf("expected 1 attempt used, got %d", rec.AttemptsUsed)
	}

	te.now = te.now.Add(time.Minute)
	if err := te.eng.OnJoin(ev); err != nil {
		t.Fatalf("redelivered join: %v", err)
	}
	rec := mustGet(t, te, key)
	if rec.AttemptsUsed != 1 {
		t.Fatalf("redelivered join must not reset attempts, got %d", rec.AttemptsUsed)
	}
	if rec.State != model.StateAwaitingAnswer {
		t.Fatalf("unexpected state %v", rec.State)
	}
	if want := te.now.Add(5 * time.Minute); !rec.DeadlineAt.Equal(want) {
		t.Fatalf("deadline not re-armed: got %v, want %v", rec.DeadlineAt, want)
	}
}

func TestWrongAnswersThenCorrect(t *testing.T) {
	te := newTestEngine(t, defaultConfig())
	ev := joinEvent(te, 40)
	key := model.RecordKey{ChatID: ev.ChatID, UserID: ev.UserID}
	if err := te.eng.OnJoin(ev); err != nil {
		t.Fatalf("on join: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := te.eng.OnAnswer(AnswerEvent{ChatID: ev.ChatID, UserID: ev.UserID, Answer: "3"}); err != nil {
			t.Fatalf("wrong answer %d: %v", i, err)
		}
	}
	rec := mustGet(t, te, key)
	if rec.State != model.StateAwaitingAnswer || rec.AttemptsUsed != 2 {
		t.Fatalf("after two wrong answers: state=%v attempts=%d", rec.State, rec.AttemptsUsed)
	}
	if err := te.eng.OnAnswer(AnswerEvent{ChatID: ev.ChatID, UserID: ev.UserID, Answer: "4"}); err != nil {
		t.Fatalf("correct answer: %v", err)
	}
	rec = mustGet(t, te, key)
	if rec.State != model.StateVerified || rec.Resolution != model.ResolutionCaptchaPassed {
		t.Fatalf("expected verified, got %v/%v", rec.State, rec.Resolution)
	}
	if te.out.admits != 1 {
		t.Fatalf("admit must be dispatched exactly once, got %d", te.out.admits)
	}
	if te.scheduler.cancelled[key] == 0 {
		t.Fatal("timer must be cancelled on verification")
	}
}

func TestAttemptLimit(t *testing.T) {
	te := newTestEngine(t, defaultConfig())
	ev := joinEvent(te, 40)
	key := model.RecordKey{ChatID: ev.ChatID, UserID: ev.UserID}
	if err := te.eng.OnJoin(ev); err != nil {
		t.Fatalf("on join: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := te.eng.OnAnswer(AnswerEvent{ChatID: ev.ChatID, UserID: ev.UserID, Answer: "3"}); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}
	rec := mustGet(t, te, key)
	if rec.AttemptsUsed != 3 {
		t.Fatalf("attempts must never exceed the bound, got %d", rec.AttemptsUsed)
	}
	if rec.State != model.StateFailed || rec.Resolution != model.ResolutionCaptchaFailed {
		t.Fatalf("expected failed/captcha_failed, got %v/%v", rec.State, rec.Resolution)
	}
	if te.out.kicks != 1 || te.out.admits != 0 {
		t.Fatalf("exactly one kick expected, kicks=%d admits=%d", te.out.kicks, te.out.admits)
	}
}

func TestAnswerWithoutRecordIsNoop(t *testing.T) {
	te := newTestEngine(t, defaultConfig())
	if err := te.eng.OnAnswer(AnswerEvent{ChatID: -100, UserID: 1, Answer: "4"}); err != nil {
		t.Fatalf("answer without record must be a silent no-op: %v", err)
	}
	if te.out.admits+te.out.kicks+te.out.presents != 0 {
		t.Fatal("no directive may be emitted for an unknown record")
	}
}

func TestTimeoutExpiresOnce(t *testing.T) {
	te := newTestEngine(t, defaultConfig())
	ev := joinEvent(te, 40)
	key := model.RecordKey{ChatID: ev.ChatID, UserID: ev.UserID}
	if err := te.eng.OnJoin(ev); err != nil {
		t.Fatalf("on join: %v", err)
	}
	te.now = te.now.Add(6 * time.Minute)
	if err := te.eng.OnTimeout(key); err != nil {
		t.Fatalf("on timeout: %v", err)
	}
	rec := mustGet(t, te, key)
	if rec.State != model.StateExpired || rec.Resolution != model.ResolutionTimeout {
		t.Fatalf("expected expired/timeout, got %v/%v", rec.State, rec.Resolution)
	}
	// a racing answer and a second (stale) timer fire are both no-ops
	if err := te.eng.OnAnswer(AnswerEvent{ChatID: ev.ChatID, UserID: ev.UserID, Answer: "4"}); err != nil {
		t.Fatalf("answer after expiry: %v", err)
	}
	if err := te.eng.OnTimeout(key); err != nil {
		t.Fatalf("stale timeout: %v", err)
	}
	if te.out.kicks != 1 || te.out.admits != 0 {
		t.Fatalf("exactly one directive expected, kicks=%d admits=%d", te.out.kicks, te.out.admits)
	}
}

func TestStaleTimerBeforeDeadline(t *testing.T) {
	te := newTestEngine(t, defaultConfig())
	ev := joinEvent(te, 40)
	key := model.RecordKey{ChatID: ev.ChatID, UserID: ev.UserID}
	if err := te.eng.OnJoin(ev); err != nil {
		t.Fatalf("on join: %v", err)
	}
	if err := te.eng.OnTimeout(key); err != nil {
		t.Fatalf("early timeout: %v", err)
	}
	rec := mustGet(t, te, key)
	if rec.State != model.StateAwaitingAnswer {
		t.Fatalf("timer firing before the deadline must not expire, state=%v", rec.State)
	}
	if te.out.kicks != 0 {
		t.Fatal("no kick may be emitted before the deadline")
	}
}

func TestLeaveExpiresSilently(t *testing.T) {
	te := newTestEngine(t, defaultConfig())
	ev := joinEvent(te, 40)
	key := model.RecordKey{ChatID: ev.ChatID, UserID: ev.UserID}
	if err := te.eng.OnJoin(ev); err != nil {
		t.Fatalf("on join: %v", err)
	}
	kicksBefore := te.out.kicks
	if err := te.eng.OnLeave(LeaveEvent{ChatID: ev.ChatID, UserID: ev.UserID}); err != nil {
		t.Fatalf("on leave: %v", err)
	}
	rec := mustGet(t, te, key)
	if rec.State != model.StateExpired || rec.Resolution != model.ResolutionLeft {
		t.Fatalf("expected expired/left, got %v/%v", rec.State, rec.Resolution)
	}
	if te.out.kicks != kicksBefore {
		t.Fatal("leaving voluntarily must not dispatch a kick")
	}
	if te.scheduler.cancelled[key] == 0 {
		t.Fatal("timer must be cancelled on leave")
	}
}

func TestRecoverExpiresPastDeadline(t *testing.T) {
	te := newTestEngine(t, defaultConfig())
	key := model.RecordKey{ChatID: -100, UserID: 42}
	rec := &model.VerificationRecord{
		ChatID:      key.ChatID,
		UserID:      key.UserID,
		FirstName:   "Stale",
		JoinedAt:    te.now.Add(-time.Hour),
		State:       model.StateAwaitingAnswer,
		Challenge:   &model.Challenge{Token: "tok", AnswerHash: model.HashAnswer("tok", "4")},
		MaxAttempts: 3,
		DeadlineAt:  te.now.Add(-30 * time.Minute),
	}
	if err := te.store.Upsert(rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	if err := te.eng.Recover(); err != nil {
		t.Fatalf("recover: %v", err)
	}
	got := mustGet(t, te, key)
	if got.State != model.StateExpired {
		t.Fatalf("recovery must expire past-deadline records, state=%v", got.State)
	}
	if te.out.kicks != 1 {
		t.Fatalf("recovery must dispatch the kick, got %d", te.out.kicks)
	}
}

func TestRecoverReschedulesFutureDeadline(t *testing.T) {
	te := newTestEngine(t, defaultConfig())
	key := model.RecordKey{ChatID: -100, UserID: 43}
	deadline := te.now.Add(2 * time.Minute)
	rec := &model.VerificationRecord{
		ChatID:      key.ChatID,
		UserID:      key.UserID,
		JoinedAt:    te.now.Add(-time.Minute),
		State:       model.StateAwaitingAnswer,
		Challenge:   &model.Challenge{Token: "tok", AnswerHash: model.HashAnswer("tok", "4")},
		MaxAttempts: 3,
		DeadlineAt:  deadline,
	}
	if err := te.store.Upsert(rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	if err := te.eng.Recover(); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if at, ok := te.scheduler.scheduled[key]; !ok || !at.Equal(deadline) {
		t.Fatalf("deadline not rescheduled: %v %v", at, ok)
	}
	if got := mustGet(t, te, key); got.State != model.StateAwaitingAnswer {
		t.Fatalf("future-deadline record must stay pending, state=%v", got.State)
	}
}

func TestHardCaptchaRouting(t *testing.T) {
	cfg := defaultConfig()
	cfg.RiskScoreToHardCaptcha = 4
	te := newTestEngine(t, cfg)
	ev := joinEvent(te, 40)
	ev.Username = "" // +3
	ev.FirstName = "xy"
	ev.LastName = "" // suspicious name, +2
	if err := te.eng.OnJoin(ev); err != nil {
		t.Fatalf("on join: %v", err)
	}
	rec := mustGet(t, te, model.RecordKey{ChatID: ev.ChatID, UserID: ev.UserID})
	if rec.Challenge.Difficulty != model.DifficultyHard {
		t.Fatalf("expected hard captcha, got %v", rec.Challenge.Difficulty)
	}
	if rec.MaxAttempts != 1 {
		t.Fatalf("hard captcha attempt budget expected 1, got %d", rec.MaxAttempts)
	}
}

func TestAdminOverride(t *testing.T) {
	te := newTestEngine(t, defaultConfig())
	ev := joinEvent(te, 40)
	key := model.RecordKey{ChatID: ev.ChatID, UserID: ev.UserID}
	if err := te.eng.OnJoin(ev); err != nil {
		t.Fatalf("on join: %v", err)
	}
	if err := te.eng.Approve(key, 99); err != nil {
		t.Fatalf("approve: %v", err)
	}
	rec := mustGet(t, te, key)
	if rec.State != model.StateVerified || rec.Resolution != model.ResolutionAdminApprove || rec.DecidedBy != 99 {
		t.Fatalf("unexpected record after approve: %v/%v by %v", rec.State, rec.Resolution, rec.DecidedBy)
	}
	if te.out.admits != 1 {
		t.Fatalf("expected one admit, got %d", te.out.admits)
	}
	if err := te.eng.Decline(key, 99); err != model.ErrTerminalRecord {
		t.Fatalf("declining a terminal record must fail, got %v", err)
	}
}
