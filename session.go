package questlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/questlog/archive"
	"github.com/youssefsiam38/questlog/boundary"
	"github.com/youssefsiam38/questlog/compress"
	"github.com/youssefsiam38/questlog/hooks"
	"github.com/youssefsiam38/questlog/metrics"
	"github.com/youssefsiam38/questlog/storage"
	"github.com/youssefsiam38/questlog/summary"
)

// Session owns the active conversation segment for one running game. It is
// the only writer of the segment: player turns append through it, the
// boundary detector watches every append, and confirmed transitions run the
// archive, summary, restore handoff. All mutation goes through Session
// methods; there is no process-wide state.
//
// A Session is safe for concurrent use, but the game loop it serves is
// single-threaded: concurrency exists only between the turn loop and the
// background compression pass.
type Session struct {
	config  Config
	store   storage.Store
	log     Logger
	metrics *metrics.Metrics
	hooks   *hooks.Registry
	now     func() time.Time

	detector   *boundary.Detector
	archiver   *archive.Manager
	summarizer *summary.Generator
	engine     *compress.Engine
	compressor *compress.Compressor

	mu      sync.Mutex
	segment *Segment
	visit   storage.ModuleVisit

	compressing bool // single-flight guard for background passes
	wg          sync.WaitGroup
}

// Transition reports a completed module handoff to the caller.
type Transition struct {
	FromModule string
	ToModule   string

	// CutSeq is the last sequence number archived for the outgoing module.
	CutSeq int

	// Restored is true when the destination segment came from an archive.
	Restored bool

	// VisitCount is the outgoing module's visit count after the exit.
	VisitCount int
}

// NewSession creates a Session. Call Resume to pick up where a previous
// process left off, or Enter to open a module explicitly.
func NewSession(config Config) (*Session, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		config:  config,
		store:   config.Store,
		log:     config.Logger,
		metrics: config.Metrics,
		hooks:   config.Hooks,
		now:     time.Now,
	}
	s.archiver = archive.NewManager(config.Store)
	if config.Model != nil {
		s.summarizer = summary.NewGenerator(config.Model, config.Store)
		s.compressor = compress.NewCompressor(config.Model, nil, config.Compression)
		s.engine = compress.NewEngine(s.compressor, config.Compression.Workers)
	}
	return s, nil
}

// Resume loads the active module visit and its segment from the store. It
// returns ErrNoActiveModule when no module is active; call Enter instead.
func (s *Session) Resume(ctx context.Context) error {
	visit, err := s.store.ActiveVisit(ctx)
	if errors.Is(err, storage.ErrVisitNotFound) {
		return NewLifecycleError("resume", ErrNoActiveModule)
	}
	if err != nil {
		return NewLifecycleError("resume", storageError(err))
	}
	turns, err := s.store.LoadSegment(ctx, visit.ModuleID)
	if err != nil {
		return NewLifecycleError("resume", storageError(err)).WithModule(visit.ModuleID)
	}
	seg := RestoredSegment(visit.ModuleID, turns)
	if err := seg.validate(); err != nil {
		return NewLifecycleError("resume", err).WithModule(visit.ModuleID)
	}

	s.mu.Lock()
	s.segment = seg
	s.visit = *visit
	s.detector = boundary.NewDetector(visit.ModuleID, s.config.PendingWindow)
	s.mu.Unlock()

	s.log.Info("session resumed", "module_id", visit.ModuleID, "turns", seg.Len())
	return nil
}

// Enter opens a module as the active one. With no module active it opens
// the destination directly, restoring its archive when one exists. With a
// module active it runs the full transition path, archiving the current
// segment first.
func (s *Session) Enter(ctx context.Context, moduleID string) (*Transition, error) {
	if moduleID == "" {
		return nil, NewLifecycleError("enter", fmt.Errorf("%w: empty module id", ErrInvalidConfig))
	}

	s.mu.Lock()
	active := s.segment != nil
	s.mu.Unlock()

	if active {
		return s.transition(ctx, boundary.Transition{
			FromModule: s.detector.CurrentModule(),
			ToModule:   moduleID,
			CutSeq:     s.currentLastSeq(),
		})
	}

	seg, restored, err := s.openSegment(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	visit, err := s.recordEntry(ctx, moduleID, restored)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.segment = seg
	s.visit = visit
	s.detector = boundary.NewDetector(moduleID, s.config.PendingWindow)
	s.mu.Unlock()

	s.log.Info("module entered", "module_id", moduleID, "restored", restored, "turns", seg.Len())
	return &Transition{ToModule: moduleID, Restored: restored}, nil
}

// Append adds one turn to the active segment and feeds it to the boundary
// detector. When the turn confirms a module transition, the full handoff
// runs before Append returns and the resulting Transition is non-nil.
//
// After a successful append a background compression pass is kicked off if
// one is not already running.
func (s *Session) Append(ctx context.Context, role storage.Role, content string, class storage.ContentClass) (storage.Turn, *Transition, error) {
	s.mu.Lock()
	if s.segment == nil {
		s.mu.Unlock()
		return storage.Turn{}, nil, NewLifecycleError("append", ErrNoActiveModule)
	}
	turn, err := s.segment.Append(role, content, class, s.now().UTC())
	if err != nil {
		s.mu.Unlock()
		return storage.Turn{}, nil, NewLifecycleError("append", err).WithModule(s.segment.ModuleID())
	}
	moduleID := s.segment.ModuleID()
	size := s.segment.Size()
	s.mu.Unlock()

	if err := s.store.AppendTurn(ctx, moduleID, turn); err != nil {
		return storage.Turn{}, nil, NewLifecycleError("append", storageError(err)).WithModule(moduleID)
	}
	s.metrics.SetSegmentChars(size)
	s.markMidPlay(ctx, moduleID)
	if s.hooks != nil {
		if err := s.hooks.TriggerTurnAppended(ctx, moduleID, turn); err != nil {
			s.log.Warn("turn-appended hook failed", "module_id", moduleID, "error", err)
		}
	}

	if tr, ok := s.detector.Observe(turn); ok {
		done, err := s.transition(ctx, tr)
		if err != nil {
			return turn, nil, err
		}
		return turn, done, nil
	}

	s.CompressAsync(ctx)
	return turn, nil, nil
}

// Turns returns a copy of the active segment's turn log.
func (s *Session) Turns() []storage.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.segment == nil {
		return nil
	}
	return s.segment.Turns()
}

// ActiveModule returns the active module id, or "" when none is open.
func (s *Session) ActiveModule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.segment == nil {
		return ""
	}
	return s.segment.ModuleID()
}

// CampaignContext assembles the cross-module context block from every
// other module's living summary, bounded so that block plus the active
// segment fit the context budget.
func (s *Session) CampaignContext(ctx context.Context) (string, error) {
	summaries, err := s.store.ListLivingSummaries(ctx)
	if err != nil {
		return "", NewLifecycleError("campaign_context", storageError(err))
	}
	s.mu.Lock()
	active := ""
	used := 0
	if s.segment != nil {
		active = s.segment.ModuleID()
		used = s.segment.Size()
	}
	s.mu.Unlock()

	budget := s.config.MaxContextChars - used
	if budget < 0 {
		budget = 0
	}
	return summary.CampaignContext(summaries, active, budget), nil
}

// CompressAsync starts a background compression pass over the eligible
// region of the active segment. At most one pass runs at a time; when one
// is already in flight the call is a no-op.
func (s *Session) CompressAsync(ctx context.Context) {
	if s.config.DisableCompression || s.engine == nil {
		return
	}
	s.mu.Lock()
	if s.compressing || s.segment == nil {
		s.mu.Unlock()
		return
	}
	s.compressing = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.compressing = false
			s.mu.Unlock()
		}()
		if err := s.compressPass(ctx); err != nil {
			s.log.Warn("background compression pass failed", "error", err)
		}
	}()
}

// EnsureBudget checks the projected context size and, when it crosses the
// trigger threshold, runs one bounded synchronous compression pass before
// returning. Callers invoke it ahead of a model call; the wait is one pass,
// never a loop chasing a target ratio.
func (s *Session) EnsureBudget(ctx context.Context) error {
	if s.config.DisableCompression || s.engine == nil {
		return nil
	}
	s.mu.Lock()
	if s.segment == nil {
		s.mu.Unlock()
		return nil
	}
	size := s.segment.Size()
	s.mu.Unlock()

	threshold := int(float64(s.config.MaxContextChars) * s.config.TriggerRatio)
	if size < threshold {
		return nil
	}
	s.log.Info("context approaching budget, forcing compression pass",
		"segment_chars", size, "threshold", threshold)
	return s.compressPass(ctx)
}

// Wait blocks until any in-flight background compression pass finishes.
func (s *Session) Wait() {
	s.wg.Wait()
}

// compressPass snapshots the eligible turns, compresses them in parallel,
// and writes the results back. The segment generation captured at snapshot
// time is the barrier: a transition bumps it, and a pass that raced the
// handoff drops its results instead of writing onto the wrong segment.
func (s *Session) compressPass(ctx context.Context) error {
	s.mu.Lock()
	if s.segment == nil {
		s.mu.Unlock()
		return nil
	}
	moduleID := s.segment.ModuleID()
	generation := s.segment.Generation()
	eligible := s.segment.Eligible(s.config.KeepRecent, s.now())
	s.mu.Unlock()

	if len(eligible) == 0 {
		return nil
	}
	if s.hooks != nil {
		if err := s.hooks.TriggerBeforeCompression(ctx, moduleID, len(eligible)); err != nil {
			s.log.Warn("before-compression hook failed", "module_id", moduleID, "error", err)
		}
	}

	pass := s.engine.Run(ctx, eligible)

	s.mu.Lock()
	if s.segment == nil || s.segment.Generation() != generation || s.segment.ModuleID() != moduleID {
		s.mu.Unlock()
		s.log.Debug("compression pass abandoned, segment handed off mid-pass",
			"module_id", moduleID)
		return nil
	}

	ev := storage.CompressionEvent{
		ID:            uuid.NewString(),
		ModuleID:      moduleID,
		TurnsEligible: len(eligible),
		CacheHits:     pass.CacheHits,
		DurationMs:    pass.Duration.Milliseconds(),
		CreatedAt:     s.now().UTC(),
	}
	var updated []storage.Turn
	for _, r := range pass.Results {
		if r.Err != nil {
			attempts := 0
			if t, ok := s.segment.Turn(r.Seq); ok {
				attempts = t.Attempts
			}
			retryAt := s.now().Add(s.config.Compression.NextRetryDelay(attempts)).UTC()
			if err := s.segment.MarkDeferred(r.Seq, retryAt); err == nil {
				ev.TurnsDeferred++
			}
			s.metrics.ObserveModelError("compress")
			s.log.Warn("turn compression deferred",
				"module_id", moduleID, "seq", r.Seq, "retry_at", retryAt, "error", r.Err)
			continue
		}
		if r.Compressed == r.Original {
			continue
		}
		if err := s.segment.ReplaceContent(r.Seq, r.Original, r.Compressed); err != nil {
			s.log.Debug("compression write-back skipped", "seq", r.Seq, "error", err)
			continue
		}
		ev.TurnsCompressed++
		ev.OriginalChars += len(r.Original)
		ev.CompressedChars += len(r.Compressed)
		if t, ok := s.segment.Turn(r.Seq); ok {
			updated = append(updated, t)
		}
		s.metrics.ObserveCacheLookup(r.FromCache)
	}
	size := s.segment.Size()
	s.mu.Unlock()

	for _, t := range updated {
		if err := s.store.ReplaceTurnContent(ctx, moduleID, t); err != nil {
			return NewLifecycleError("compress", storageError(err)).WithModule(moduleID)
		}
	}
	if err := s.store.SaveCompressionEvent(ctx, ev); err != nil {
		s.log.Warn("compression event not recorded", "module_id", moduleID, "error", err)
	}
	if s.hooks != nil {
		if err := s.hooks.TriggerAfterCompression(ctx, ev); err != nil {
			s.log.Warn("after-compression hook failed", "module_id", moduleID, "error", err)
		}
	}
	s.metrics.ObservePass(pass.Ratio(), ev.TurnsCompressed, pass.Duration)
	s.metrics.SetSegmentChars(size)
	s.log.Info("compression pass complete",
		"module_id", moduleID,
		"eligible", ev.TurnsEligible,
		"compressed", ev.TurnsCompressed,
		"deferred", ev.TurnsDeferred,
		"cache_hits", ev.CacheHits,
		"ratio", pass.Ratio())
	return nil
}

// transition runs the module handoff: archive the outgoing segment up to
// the cut point, regenerate its living summary, clear it, and open the
// destination. Archive failure blocks the whole transition; summary
// failure only warns.
//
// Turns past the cut point (the state update that confirmed the move, and
// anything after it) belong to the destination and are re-appended to its
// segment.
func (s *Session) transition(ctx context.Context, tr boundary.Transition) (*Transition, error) {
	s.mu.Lock()
	if s.segment == nil {
		s.mu.Unlock()
		return nil, NewLifecycleError("transition", ErrNoActiveModule)
	}
	// Barrier: any in-flight compression pass on this segment must not
	// write back after the handoff.
	s.segment.bumpGeneration()
	outgoing := s.segment.TurnsUpTo(tr.CutSeq)
	var carried []storage.Turn
	for _, t := range s.segment.Turns() {
		if t.Seq > tr.CutSeq {
			carried = append(carried, t)
		}
	}
	s.mu.Unlock()

	if _, err := s.archiver.Archive(ctx, tr.FromModule, outgoing); err != nil {
		s.metrics.ObserveArchiveFailure()
		s.detector.Reset(tr.FromModule)
		s.log.Error("archive failed, transition blocked",
			"from_module", tr.FromModule, "to_module", tr.ToModule, "error", err)
		return nil, NewLifecycleError("transition",
			fmt.Errorf("%w: %w", ErrTransitionBlocked, err)).WithModule(tr.FromModule)
	}

	visitCount := 0
	sum, err := s.regenerateSummary(ctx, tr.FromModule)
	if err != nil {
		s.metrics.ObserveModelError("summary")
		s.log.Warn("living summary regeneration failed, prior summary retained",
			"module_id", tr.FromModule, "error", err)
	}
	visitCount = sum.VisitCount
	if err == nil && s.hooks != nil {
		if herr := s.hooks.TriggerSummary(ctx, sum); herr != nil {
			s.log.Warn("summary hook failed", "module_id", tr.FromModule, "error", herr)
		}
	}

	if err := s.store.ClearSegment(ctx, tr.FromModule); err != nil {
		return nil, NewLifecycleError("transition", storageError(err)).WithModule(tr.FromModule)
	}

	seg, restored, err := s.openSegment(ctx, tr.ToModule)
	if err != nil {
		return nil, err
	}
	visit, err := s.recordEntry(ctx, tr.ToModule, restored)
	if err != nil {
		return nil, err
	}
	for _, t := range carried {
		appended, err := seg.Append(t.Role, t.Content, t.Class, t.Timestamp)
		if err != nil {
			return nil, NewLifecycleError("transition", err).WithModule(tr.ToModule)
		}
		if err := s.store.AppendTurn(ctx, tr.ToModule, appended); err != nil {
			return nil, NewLifecycleError("transition", storageError(err)).WithModule(tr.ToModule)
		}
	}

	s.mu.Lock()
	s.segment = seg
	s.visit = visit
	s.mu.Unlock()
	s.detector.Reset(tr.ToModule)

	s.metrics.ObserveTransition()
	s.metrics.SetSegmentChars(seg.Size())
	if s.hooks != nil {
		if err := s.hooks.TriggerTransition(ctx, tr.FromModule, tr.ToModule, tr.CutSeq, restored); err != nil {
			s.log.Warn("transition hook failed", "module_id", tr.ToModule, "error", err)
		}
	}
	s.log.Info("module transition complete",
		"from_module", tr.FromModule,
		"to_module", tr.ToModule,
		"cut_seq", tr.CutSeq,
		"restored", restored,
		"carried_turns", len(carried),
		"visit_count", visitCount)

	return &Transition{
		FromModule: tr.FromModule,
		ToModule:   tr.ToModule,
		CutSeq:     tr.CutSeq,
		Restored:   restored,
		VisitCount: visitCount,
	}, nil
}

// regenerateSummary rebuilds the outgoing module's living summary from its
// complete history, the freshly written archive included. When no model is
// configured the exit is still recorded against the summary record.
func (s *Session) regenerateSummary(ctx context.Context, moduleID string) (storage.LivingSummary, error) {
	rec, err := s.store.GetArchive(ctx, moduleID)
	if err != nil {
		return storage.LivingSummary{}, err
	}
	if s.summarizer == nil {
		gen := summary.NewGenerator(nil, s.store)
		return gen.Regenerate(ctx, moduleID, nil, s.now())
	}
	return s.summarizer.Regenerate(ctx, moduleID, rec.Turns, s.now())
}

func (s *Session) openSegment(ctx context.Context, moduleID string) (*Segment, bool, error) {
	turns, err := s.archiver.Restore(ctx, moduleID)
	if errors.Is(err, archive.ErrFirstVisit) {
		return NewSegment(moduleID), false, nil
	}
	if err != nil {
		return nil, false, NewLifecycleError("restore", storageError(err)).WithModule(moduleID)
	}
	seg := RestoredSegment(moduleID, turns)
	if err := seg.validate(); err != nil {
		return nil, false, NewLifecycleError("restore", err).WithModule(moduleID)
	}
	if err := s.store.ReplaceSegment(ctx, moduleID, turns); err != nil {
		return nil, false, NewLifecycleError("restore", storageError(err)).WithModule(moduleID)
	}
	return seg, true, nil
}

func (s *Session) recordEntry(ctx context.Context, moduleID string, restored bool) (storage.ModuleVisit, error) {
	now := s.now().UTC()
	state := storage.VisitFresh
	if restored {
		state = storage.VisitRestored
	}
	visit := storage.ModuleVisit{
		ModuleID:  moduleID,
		State:     state,
		Active:    true,
		EnteredAt: now,
		UpdatedAt: now,
	}
	if prior, err := s.store.GetVisit(ctx, moduleID); err == nil {
		visit.EnteredAt = prior.EnteredAt
	}
	if err := s.store.UpsertVisit(ctx, visit); err != nil {
		return storage.ModuleVisit{}, NewLifecycleError("enter", storageError(err)).WithModule(moduleID)
	}
	return visit, nil
}

// markMidPlay flips the visit state on the first append after entry.
func (s *Session) markMidPlay(ctx context.Context, moduleID string) {
	s.mu.Lock()
	if s.visit.State == storage.VisitMidPlay {
		s.mu.Unlock()
		return
	}
	s.visit.State = storage.VisitMidPlay
	s.visit.UpdatedAt = s.now().UTC()
	visit := s.visit
	s.mu.Unlock()

	if err := s.store.UpsertVisit(ctx, visit); err != nil {
		s.log.Warn("visit state not updated", "module_id", moduleID, "error", err)
	}
}

func (s *Session) currentLastSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.segment == nil {
		return 0
	}
	return s.segment.NextSeq() - 1
}

// Close waits for background work and is safe to call more than once. The
// store is owned by the caller and is not closed here.
func (s *Session) Close() error {
	s.wg.Wait()
	return nil
}
