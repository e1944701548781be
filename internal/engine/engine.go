package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/facet/internal/bank"
)

// DefaultLockTimeout bounds how long an operation waits for a session's
// exclusive lock before failing with E_LOCK_TIMEOUT.
const DefaultLockTimeout = 5 * time.Second

// Engine drives sessions against a single loaded bank.
//
// The engine is called synchronously by many independent callers; it
// runs no internal goroutines. Safety comes from per-session exclusive
// locks, not a global lock: operations on different sessions never
// contend.
//
// Thread-safety model:
//   - All exported methods are safe from any goroutine.
//   - A session's state and ledger are only touched while its lock is
//     held; every exit path (including errors) releases it.
//   - ReplaceBank swaps the loaded bank atomically; in-flight sessions
//     bound to the old hash fail subsequent calls with
//     E_VERSION_MISMATCH rather than scoring against the wrong bank.
//
// INVARIANTS:
//   - A session's Seed, BankHash, and Profile never change after init.
//   - Scoring never reads the wall clock or the ID generator.
//   - Finalize computes at most one snapshot per session.
type Engine struct {
	mu  sync.RWMutex // guards pkg
	pkg *bank.Package

	store       SessionStore
	locks       *sessionLocks
	clock       *Clock
	now         func() time.Time
	ids         IDGenerator
	archiver    Archiver
	profile     string
	lockTimeout time.Duration
	log         *slog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithSessionStore replaces the default in-memory session store.
func WithSessionStore(s SessionStore) EngineOption {
	return func(e *Engine) {
		e.store = s
	}
}

// WithClock sets the logical clock used for answer sequencing.
// Pass NewClockAt to resume numbering from a known point.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithNow overrides the wall-clock source. Timestamps are observational
// only; they never influence scheduling or scoring.
func WithNow(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator replaces the UUIDv7 session ID source.
// Use NewFixedIDGenerator in tests and replay.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithArchiver registers a persistence sink for finalized sessions.
func WithArchiver(a Archiver) EngineOption {
	return func(e *Engine) {
		e.archiver = a
	}
}

// WithConstantsProfile selects a named constants profile from the bank.
// Default: the bank's default profile.
func WithConstantsProfile(name string) EngineOption {
	return func(e *Engine) {
		e.profile = name
	}
}

// WithLockTimeout bounds session lock acquisition.
func WithLockTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.lockTimeout = d
	}
}

// WithLogger replaces the engine's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// New creates an Engine bound to a sealed bank package.
//
// The package must be sealed (hash computed, indexes built); the engine
// trusts its structural invariants and re-validates only the hash
// binding per session.
func New(pkg *bank.Package, opts ...EngineOption) (*Engine, error) {
	if pkg == nil {
		return nil, fmt.Errorf("engine requires a bank package")
	}
	if !pkg.Sealed() {
		return nil, fmt.Errorf("bank package %q is not sealed", pkg.Name)
	}

	e := &Engine{
		pkg:         pkg,
		store:       NewMemoryStore(),
		locks:       newSessionLocks(),
		clock:       NewClock(),
		now:         time.Now,
		ids:         UUIDv7Generator{},
		lockTimeout: DefaultLockTimeout,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	constants, err := pkg.Constants(e.profile)
	if err != nil {
		return nil, fmt.Errorf("resolving constants profile: %w", err)
	}
	e.profile = constants.Name

	return e, nil
}

// loadedPkg returns the currently loaded bank.
func (e *Engine) loadedPkg() *bank.Package {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pkg
}

// ReplaceBank atomically swaps the loaded bank. Sessions bound to the
// previous bank's hash fail their next operation with
// E_VERSION_MISMATCH; they are not migrated.
func (e *Engine) ReplaceBank(pkg *bank.Package) error {
	if pkg == nil {
		return fmt.Errorf("engine requires a bank package")
	}
	if !pkg.Sealed() {
		return fmt.Errorf("bank package %q is not sealed", pkg.Name)
	}
	if _, err := pkg.Constants(e.profile); err != nil {
		return fmt.Errorf("resolving constants profile: %w", err)
	}

	e.mu.Lock()
	old := e.pkg
	e.pkg = pkg
	e.mu.Unlock()

	e.log.Info("bank replaced",
		"old_hash", old.Hash(),
		"new_hash", pkg.Hash())
	return nil
}

// acquire takes the session lock, bounded by the configured timeout.
// Cancellation is only observed before the wait; operations are short
// and atomic once the lock is held.
func (e *Engine) acquire(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.locks.Acquire(sessionID, e.lockTimeout) {
		return newLockTimeoutError(sessionID)
	}
	return nil
}

// getSession looks up a session. Caller holds the session lock.
func (e *Engine) getSession(sessionID string) (*Session, error) {
	sess, ok := e.store.Get(sessionID)
	if !ok {
		return nil, &EngineError{
			Code:      ErrCodeSessionUnknown,
			Message:   "session is not registered",
			SessionID: sessionID,
		}
	}
	return sess, nil
}

// checkBinding verifies the session's bank hash against the loaded
// bank. Every session operation performs this check first so answers
// are never scored against a hot-swapped bank.
func checkBinding(sess *Session, pkg *bank.Package) error {
	if sess.BankHash != pkg.Hash() {
		return newVersionMismatchError(sess.ID, sess.BankHash, pkg.Hash())
	}
	return nil
}

// InitSession creates a session bound to the loaded bank's hash and the
// engine's constants profile. The seed feeds every scheduling draw the
// session will make; pass a distinct seed per respondent.
func (e *Engine) InitSession(ctx context.Context, sessionSeed string) (SessionView, error) {
	if err := ctx.Err(); err != nil {
		return SessionView{}, err
	}

	pkg := e.loadedPkg()
	sess := &Session{
		ID:        e.ids.NewSessionID(),
		Seed:      sessionSeed,
		BankHash:  pkg.Hash(),
		Profile:   e.profile,
		Phase:     PhaseInit,
		CreatedAt: e.now(),
		picksSet:  make(map[string]bool),
		answers:   make(map[string]*Answer),
		acks:      make(map[string]Ack),
	}
	e.store.Put(sess)

	e.log.Info("session initialized",
		"session_id", sess.ID,
		"bank_hash", sess.BankHash,
		"profile", sess.Profile)
	return sess.view(), nil
}

// SetPicks fixes the session's picked families and builds its schedule.
// Legal only in INIT. Picks may number 0 through 7; each name must be a
// distinct authored family. The stored pick order is canonical (the
// bank's authored family order) regardless of argument order.
func (e *Engine) SetPicks(ctx context.Context, sessionID string, families []string) (*Schedule, error) {
	if err := e.acquire(ctx, sessionID); err != nil {
		return nil, err
	}
	defer e.locks.Release(sessionID)

	sess, err := e.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	pkg := e.loadedPkg()
	if err := checkBinding(sess, pkg); err != nil {
		return nil, err
	}
	if sess.Phase == PhaseAborted {
		return nil, e.abortedError(sess)
	}
	if sess.Phase != PhaseInit {
		return nil, newStateError(sessionID, sess.Phase, "setPicks")
	}

	picksSet := make(map[string]bool, len(families))
	for _, fam := range families {
		if !pkg.HasFamily(fam) {
			return nil, &EngineError{
				Code:      ErrCodePicksInvalid,
				Message:   fmt.Sprintf("unknown family %q", fam),
				SessionID: sessionID,
			}
		}
		if picksSet[fam] {
			return nil, &EngineError{
				Code:      ErrCodePicksInvalid,
				Message:   fmt.Sprintf("duplicate family %q", fam),
				SessionID: sessionID,
			}
		}
		picksSet[fam] = true
	}

	// Canonical pick order is the bank's authored family order.
	var picks []string
	for _, fam := range pkg.FamilyNames() {
		if picksSet[fam] {
			picks = append(picks, fam)
		}
	}

	stream := NewStream(sess.Seed, sess.BankHash, sess.Profile)
	schedule, err := BuildSchedule(pkg, picks, stream)
	if err != nil {
		return nil, err
	}

	constants, err := pkg.Constants(sess.Profile)
	if err != nil {
		return nil, fmt.Errorf("resolving constants profile: %w", err)
	}

	sess.Picks = picks
	sess.picksSet = picksSet
	sess.Schedule = schedule
	sess.ledger = NewLedger(pkg, constants, picksSet)
	sess.Phase = PhasePicked

	e.log.Info("picks set",
		"session_id", sessionID,
		"picks", len(picks),
		"schedule_len", len(schedule.Entries))
	return schedule, nil
}

// NextQuestion returns the first unanswered question in schedule order,
// shaped for presentation: no line grades, no tell IDs. Legal in PICKED
// and IN_PROGRESS. Returns nil when the schedule is exhausted.
func (e *Engine) NextQuestion(ctx context.Context, sessionID string) (*Question, error) {
	if err := e.acquire(ctx, sessionID); err != nil {
		return nil, err
	}
	defer e.locks.Release(sessionID)

	sess, err := e.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	pkg := e.loadedPkg()
	if err := checkBinding(sess, pkg); err != nil {
		return nil, err
	}
	if sess.Phase == PhaseAborted {
		return nil, e.abortedError(sess)
	}
	if sess.Phase != PhasePicked && sess.Phase != PhaseInProgress {
		return nil, newStateError(sessionID, sess.Phase, "getNextQuestion")
	}

	for _, entry := range sess.Schedule.Entries {
		if _, answered := sess.answers[entry.QID]; answered {
			continue
		}
		return e.presentQuestion(pkg, entry), nil
	}
	return nil, nil
}

// presentQuestion shapes a schedule entry for the caller.
func (e *Engine) presentQuestion(pkg *bank.Package, entry ScheduleEntry) *Question {
	q, ok := pkg.Question(entry.QID)
	if !ok {
		// Schedules are built from the same sealed bank they are served
		// from; a missing qid is an unreachable invariant violation.
		panic(fmt.Sprintf("bank %s: scheduled qid %q not in registry", pkg.Name, entry.QID))
	}

	opts := make([]QuestionOption, len(q.Options))
	for i, opt := range q.Options {
		opts[i] = QuestionOption{Key: opt.Key, Text: opt.Text}
	}
	return &Question{
		QID:         q.QID,
		Family:      q.Family,
		Probe:       q.Probe,
		ScreenIndex: entry.ScreenIndex,
		Text:        q.Text,
		Options:     opts,
	}
}

// SubmitAnswer records the chosen option for a scheduled question.
//
// Idempotent per (session, qid): resubmitting the same option returns
// the cached ack without touching the ledger. Submitting a different
// option replaces the previous answer: the family line's clean counter
// is reversed exactly (bent/broken stay latched), and every face ledger
// is rebuilt from the surviving answers in submission order.
//
// Reaching the scheduled answer count moves the session to FINALIZING.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID, qid, optionKey string, opts SubmitOptions) (Ack, error) {
	if err := e.acquire(ctx, sessionID); err != nil {
		return Ack{}, err
	}
	defer e.locks.Release(sessionID)

	sess, err := e.getSession(sessionID)
	if err != nil {
		return Ack{}, err
	}
	pkg := e.loadedPkg()
	if err := checkBinding(sess, pkg); err != nil {
		return Ack{}, err
	}
	if sess.Phase == PhaseAborted {
		return Ack{}, e.abortedError(sess)
	}
	switch sess.Phase {
	case PhasePicked, PhaseInProgress:
	case PhaseFinalizing, PhaseFinalized:
		// Only the cached-ack path below is reachable here: a retried
		// final submission must still be idempotent after the session
		// auto-transitions out of IN_PROGRESS.
	default:
		return Ack{}, newStateError(sessionID, sess.Phase, "submitAnswer")
	}

	if !sess.Schedule.Contains(qid) {
		return Ack{}, &EngineError{
			Code:      ErrCodeQIDUnknown,
			Message:   "qid is not in this session's schedule",
			SessionID: sessionID,
			QID:       qid,
		}
	}
	q, ok := pkg.Question(qid)
	if !ok {
		panic(fmt.Sprintf("bank %s: scheduled qid %q not in registry", pkg.Name, qid))
	}
	opt, ok := q.Option(optionKey)
	if !ok {
		return Ack{}, &EngineError{
			Code:      ErrCodeOptionUnknown,
			Message:   fmt.Sprintf("question has no option %q", optionKey),
			SessionID: sessionID,
			QID:       qid,
		}
	}
	if !bank.ValidLineCOF[opt.Line] {
		return Ack{}, &EngineError{
			Code:      ErrCodeBankDefect,
			Message:   fmt.Sprintf("option %q has a malformed line grade %q", optionKey, opt.Line),
			SessionID: sessionID,
			QID:       qid,
		}
	}

	if prior, answered := sess.answers[qid]; answered {
		if prior.OptionKey == optionKey {
			// Unchanged resubmission: cached ack, no ledger effects.
			return sess.acks[qid], nil
		}
		if sess.Phase != PhasePicked && sess.Phase != PhaseInProgress {
			return Ack{}, newStateError(sessionID, sess.Phase, "submitAnswer")
		}
		return e.replaceAnswer(sess, q, prior, opt, opts), nil
	}
	if sess.Phase != PhasePicked && sess.Phase != PhaseInProgress {
		return Ack{}, newStateError(sessionID, sess.Phase, "submitAnswer")
	}
	return e.recordAnswer(sess, q, opt, opts), nil
}

// recordAnswer applies a first-time answer. Caller holds the session
// lock and has validated the question, option, and phase.
func (e *Engine) recordAnswer(sess *Session, q bank.Question, opt bank.Option, opts SubmitOptions) Ack {
	if sess.Phase == PhasePicked {
		sess.Phase = PhaseInProgress
	}

	ans := &Answer{
		QID:       q.QID,
		Family:    q.Family,
		OptionKey: opt.Key,
		Line:      opt.Line,
		Tells:     opt.Tells,
		Seq:       e.clock.Next(),
		TS:        e.resolveTS(opts),
		LatencyMS: opts.LatencyMS,
	}
	sum := sess.ledger.Apply(ans)
	ans.Credited, ans.Dropped = sum.Credited, sum.Dropped

	sess.answers[q.QID] = ans
	sess.order = append(sess.order, q.QID)

	ack := Ack{
		SessionID:   sess.ID,
		QID:         q.QID,
		OptionKey:   opt.Key,
		Seq:         ans.Seq,
		AnswerCount: sess.answerCount(),
		Credited:    ans.Credited,
		Dropped:     ans.Dropped,
	}
	sess.acks[q.QID] = ack

	e.log.Debug("answer recorded",
		"session_id", sess.ID,
		"qid", q.QID,
		"option", opt.Key,
		"credited", ans.Credited,
		"dropped", ans.Dropped)

	if sess.answerCount() == len(sess.Schedule.Entries) {
		sess.Phase = PhaseFinalizing
		e.log.Info("session complete, awaiting finalize",
			"session_id", sess.ID,
			"answers", sess.answerCount())
	}
	return ack
}

// replaceAnswer substitutes a new option for a previously answered
// question. The replacement keeps the original submission slot so cap
// decisions replay in a stable order.
func (e *Engine) replaceAnswer(sess *Session, q bank.Question, prior *Answer, opt bank.Option, opts SubmitOptions) Ack {
	sess.ledger.reverseLine(q.Family, prior.Line)
	ans := &Answer{
		QID:       q.QID,
		Family:    q.Family,
		OptionKey: opt.Key,
		Line:      opt.Line,
		Tells:     opt.Tells,
		Seq:       e.clock.Next(),
		TS:        e.resolveTS(opts),
		LatencyMS: opts.LatencyMS,
	}
	sess.ledger.applyLine(q.Family, ans.Line)
	sess.answers[q.QID] = ans

	sums := sess.ledger.RebuildFaces(sess.orderedAnswers())
	for qid, sum := range sums {
		other := sess.answers[qid]
		other.Credited, other.Dropped = sum.Credited, sum.Dropped
	}

	ack := Ack{
		SessionID:   sess.ID,
		QID:         q.QID,
		OptionKey:   opt.Key,
		Seq:         ans.Seq,
		AnswerCount: sess.answerCount(),
		Credited:    ans.Credited,
		Dropped:     ans.Dropped,
		Replaced:    true,
	}
	sess.acks[q.QID] = ack

	e.log.Info("answer replaced",
		"session_id", sess.ID,
		"qid", q.QID,
		"old_option", prior.OptionKey,
		"new_option", opt.Key)
	return ack
}

func (e *Engine) resolveTS(opts SubmitOptions) time.Time {
	if opts.TS.IsZero() {
		return e.now()
	}
	return opts.TS
}

// Finalize gates every face, settles line verdicts, picks family
// representatives and the anchor family, and seals the result into a
// hash-bearing FinalSnapshot.
//
// At-most-once per session: the first caller computes under the session
// lock; concurrent callers block on that lock and then receive the
// cached snapshot, as do all later calls. A session that has not
// answered its full schedule fails with E_INCOMPLETE_SESSION.
func (e *Engine) Finalize(ctx context.Context, sessionID string) (*FinalSnapshot, error) {
	if err := e.acquire(ctx, sessionID); err != nil {
		return nil, err
	}
	defer e.locks.Release(sessionID)

	sess, err := e.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	pkg := e.loadedPkg()
	if err := checkBinding(sess, pkg); err != nil {
		return nil, err
	}

	switch sess.Phase {
	case PhaseFinalized:
		// Cached result; retry archival if an earlier attempt failed.
		if !sess.archived {
			e.archiveSession(ctx, sess, sess.snapshot)
		}
		return sess.snapshot, nil
	case PhaseAborted:
		return nil, e.abortedError(sess)
	case PhaseInit:
		return nil, newStateError(sessionID, sess.Phase, "finalizeSession")
	case PhasePicked, PhaseInProgress, PhasePaused:
		return nil, &EngineError{
			Code:      ErrCodeIncompleteSession,
			Message:   fmt.Sprintf("answered %d of %d scheduled questions", sess.answerCount(), len(sess.Schedule.Entries)),
			SessionID: sessionID,
		}
	case PhaseFinalizing:
		// Fall through to compute.
	default:
		return nil, newStateError(sessionID, sess.Phase, "finalizeSession")
	}

	if sess.answerCount() != len(sess.Schedule.Entries) {
		return nil, &EngineError{
			Code:      ErrCodeIncompleteSession,
			Message:   fmt.Sprintf("answered %d of %d scheduled questions", sess.answerCount(), len(sess.Schedule.Entries)),
			SessionID: sessionID,
		}
	}

	constants, err := pkg.Constants(sess.Profile)
	if err != nil {
		return nil, fmt.Errorf("resolving constants profile: %w", err)
	}

	res := computeFinal(pkg, constants, sess.ledger, sess.picksSet)
	snap, err := newFinalSnapshot(sess, res)
	if err != nil {
		return nil, err
	}

	sess.snapshot = snap
	sess.Phase = PhaseFinalized

	e.log.Info("session finalized",
		"session_id", sessionID,
		"snapshot_hash", snap.SnapshotHash,
		"anchor_family", snap.AnchorFamily)

	e.archiveSession(ctx, sess, snap)
	return snap, nil
}

// archiveSession hands the finalized session to the archiver. Archive
// failures are logged and retried on later Finalize calls; they never
// invalidate the snapshot.
func (e *Engine) archiveSession(ctx context.Context, sess *Session, snap *FinalSnapshot) {
	if e.archiver == nil {
		sess.archived = true
		return
	}

	rec, err := archiveRecord(sess, snap)
	if err != nil {
		e.log.Warn("archive record assembly failed",
			"session_id", sess.ID,
			"error", err)
		return
	}
	if err := e.archiver.ArchiveSession(ctx, rec); err != nil {
		e.log.Warn("session archive failed",
			"session_id", sess.ID,
			"error", err)
		return
	}
	sess.archived = true
}

// Pause suspends an in-progress session. Legal only from IN_PROGRESS.
func (e *Engine) Pause(ctx context.Context, sessionID string) error {
	return e.transition(ctx, sessionID, "pauseSession", PhaseInProgress, PhasePaused)
}

// Resume reactivates a paused session. Legal only from PAUSED.
func (e *Engine) Resume(ctx context.Context, sessionID string) error {
	return e.transition(ctx, sessionID, "resumeSession", PhasePaused, PhaseInProgress)
}

// transition moves a session from exactly one phase to another.
func (e *Engine) transition(ctx context.Context, sessionID, op string, from, to Phase) error {
	if err := e.acquire(ctx, sessionID); err != nil {
		return err
	}
	defer e.locks.Release(sessionID)

	sess, err := e.getSession(sessionID)
	if err != nil {
		return err
	}
	if err := checkBinding(sess, e.loadedPkg()); err != nil {
		return err
	}
	if sess.Phase == PhaseAborted {
		return e.abortedError(sess)
	}
	if sess.Phase != from {
		return newStateError(sessionID, sess.Phase, op)
	}

	sess.Phase = to
	e.log.Info("session phase changed",
		"session_id", sessionID,
		"from", from,
		"to", to)
	return nil
}

// Abort terminally cancels a session from any pre-FINALIZED phase. The
// session stays registered so later calls report E_SESSION_ABORTED
// rather than E_SESSION_UNKNOWN.
func (e *Engine) Abort(ctx context.Context, sessionID, reason string) error {
	if err := e.acquire(ctx, sessionID); err != nil {
		return err
	}
	defer e.locks.Release(sessionID)

	sess, err := e.getSession(sessionID)
	if err != nil {
		return err
	}
	if err := checkBinding(sess, e.loadedPkg()); err != nil {
		return err
	}
	if sess.Phase == PhaseAborted {
		return e.abortedError(sess)
	}
	if sess.Phase == PhaseFinalized {
		return newStateError(sessionID, sess.Phase, "abortSession")
	}

	sess.Phase = PhaseAborted
	sess.AbortReason = reason

	e.log.Info("session aborted",
		"session_id", sessionID,
		"reason", reason)
	return nil
}

// SessionInfo returns a read-only view of a session. Unlike session
// operations it does not require the bank binding to still match, so
// sessions stranded by a bank swap remain inspectable.
func (e *Engine) SessionInfo(ctx context.Context, sessionID string) (SessionView, error) {
	if err := e.acquire(ctx, sessionID); err != nil {
		return SessionView{}, err
	}
	defer e.locks.Release(sessionID)

	sess, err := e.getSession(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return sess.view(), nil
}

func (e *Engine) abortedError(sess *Session) *EngineError {
	return &EngineError{
		Code:      ErrCodeSessionAborted,
		Message:   "session was aborted",
		SessionID: sess.ID,
		Details:   map[string]string{"reason": sess.AbortReason},
	}
}
