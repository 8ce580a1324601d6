package jarkeep

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Synchronizer keeps the live cookie jar and the credential vault in step.
//
// On Start it runs the one-time legacy migration, restores the persisted
// session into the jar, and begins listening for jar-change notifications.
// Bursts of notifications are coalesced by a quiescence window; when it
// elapses, the jar is snapshotted, filtered down to valid auth cookies for
// the configured domains, and written to the vault on a background writer so
// jar notification delivery is never blocked on storage I/O.
//
// All synchronizer state (the debounce timer, the pending backup) is owned by
// one goroutine; notifications are messages into that goroutine, not
// callbacks mutating shared state.
type Synchronizer struct {
	jar   Jar
	vault Vault
	cfg   Config
	log   *log.Logger
	now   func() time.Time

	// restoring gates out notifications fired by the restore's own jar
	// writes, so a half-installed session is never immediately persisted.
	restoring atomic.Bool

	events chan struct{}
	saves  chan backupJob
	stop   chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type backupJob struct {
	blob    []byte
	records []Cookie
}

// NewSynchronizer wires a synchronizer to a live jar and a vault. A nil
// logger means the process-wide standard logger.
func NewSynchronizer(jar Jar, vault Vault, cfg Config, logger *log.Logger) *Synchronizer {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultConfig().DebounceWindow
	}
	return &Synchronizer{
		jar:    jar,
		vault:  vault,
		cfg:    cfg,
		log:    logger,
		now:    time.Now,
		events: make(chan struct{}, 1),
		saves:  make(chan backupJob, 1),
		stop:   make(chan struct{}),
	}
}

// Start runs migration and restore, then begins consuming jar-change
// notifications. Every failure along the way is non-fatal (worst case the
// user has to sign in again), so Start reports nothing. It may be called
// once; further calls are no-ops.
func (s *Synchronizer) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		if _, err := NewMigrator(s.vault, s.cfg, s.log).Run(ctx); err != nil {
			// Migration failure is never fatal; the legacy artifact is
			// retained and the user may simply have to sign in again.
			s.log.WithError(err).Error("sync: legacy migration failed")
		}

		s.restoring.Store(true)
		s.jar.OnChange(s.notifyChanged)

		s.restore(ctx)
		s.restoring.Store(false)

		// Discard anything queued by the restore's own writes.
		select {
		case <-s.events:
		default:
		}

		s.wg.Add(2)
		go s.runLoop()
		go s.runWriter()
	})
}

// Close stops the debounce loop and the background writer. A backup already
// handed to the writer completes; vault saves are atomic, so a write racing
// Close cannot corrupt the entry.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// notifyChanged is invoked by the jar on every mutation. It must stay cheap
// and non-blocking; coalescing means a dropped send is always covered by the
// one already queued.
func (s *Synchronizer) notifyChanged() {
	if s.restoring.Load() {
		return
	}
	select {
	case s.events <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) runLoop() {
	defer s.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-s.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.events:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(s.cfg.DebounceWindow)
			timerC = timer.C
		case <-timerC:
			timer = nil
			timerC = nil
			s.scheduleBackup()
		}
	}
}

func (s *Synchronizer) runWriter() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stop:
			// Flush a backup that was queued but not yet written.
			select {
			case job := <-s.saves:
				s.writeBackup(job)
			default:
			}
			return
		case job := <-s.saves:
			s.writeBackup(job)
		}
	}
}

func (s *Synchronizer) scheduleBackup() {
	job, ok := s.snapshotBackup(context.Background())
	if !ok {
		return
	}

	// Last submitted wins: replace a not-yet-written job instead of queueing
	// behind it.
	for {
		select {
		case s.saves <- job:
			return
		default:
			select {
			case <-s.saves:
			default:
			}
		}
	}
}

// ForceBackup snapshots and persists the jar immediately, skipping the
// quiescence window. Hosts call it right after the login flow reports
// success, closing the race between "just logged in" and "process killed
// before the debounce fires".
func (s *Synchronizer) ForceBackup(ctx context.Context) error {
	job, ok := s.snapshotBackup(ctx)
	if !ok {
		return nil
	}
	return s.persist(job)
}

// snapshotBackup reads the jar and builds the blob to persist. ok is false
// when there is nothing worth writing: an empty snapshot never overwrites a
// previously good session, since the notification may have fired for an
// unrelated site.
func (s *Synchronizer) snapshotBackup(ctx context.Context) (backupJob, bool) {
	records, err := s.jar.Cookies(ctx)
	if err != nil {
		s.log.WithError(err).Error("sync: jar read failed")
		return backupJob{}, false
	}

	now := s.now()
	keep := make([]Cookie, 0, len(records))
	for _, c := range dedupeCookies(records) {
		if !s.domainRelevant(c.Domain) {
			continue
		}
		if !IsValidAuthCookie(c, now) {
			continue
		}
		keep = append(keep, c)
	}
	if len(keep) == 0 {
		s.log.Debug("sync: no valid auth cookies in snapshot, skipping backup")
		return backupJob{}, false
	}

	blob, err := EncodeArchive(keep)
	if err != nil {
		s.log.WithError(err).Error("sync: archive encode failed")
		return backupJob{}, false
	}
	return backupJob{blob: blob, records: keep}, true
}

func (s *Synchronizer) writeBackup(job backupJob) {
	if err := s.persist(job); err != nil {
		s.log.WithError(err).WithField("cookies", len(job.records)).Error("sync: backup failed")
	}
}

func (s *Synchronizer) persist(job backupJob) error {
	if err := s.vault.Save(job.blob); err != nil {
		return err
	}
	s.log.WithField("cookies", len(job.records)).Debug("sync: session backed up")

	if s.cfg.MirrorPath != "" {
		if err := writeMirror(s.cfg.MirrorPath, job.records); err != nil {
			s.log.WithError(err).Error("sync: diagnostics mirror write failed")
		}
	}
	return nil
}

// domainRelevant reports whether a cookie scoped to cookieDomain would be
// visible to a request against one of the configured sync domains. Backup and
// lookup deliberately share the one MatchesDomain policy.
func (s *Synchronizer) domainRelevant(cookieDomain string) bool {
	for _, d := range s.cfg.syncDomains() {
		if MatchesDomain(cookieDomain, requestHost(d)) {
			return true
		}
	}
	return false
}

// restore installs the persisted session into the live jar. Every failure
// path is non-fatal: the user just appears signed out.
func (s *Synchronizer) restore(ctx context.Context) {
	blob, err := s.vault.Load()
	if err != nil {
		if errors.Is(err, ErrVaultUnavailable) {
			s.log.Warn("sync: vault unavailable, session not restored")
		} else {
			s.log.WithError(err).Error("sync: vault load failed")
		}
		return
	}
	if len(blob) == 0 {
		s.log.Debug("sync: no persisted session")
		return
	}

	records, err := DecodeArchive(blob)
	if err != nil {
		// Corrupted entry stays in the vault; it decodes the same way every
		// launch, and deleting secure data on a decode error is too
		// destructive to do silently.
		s.log.WithError(err).Error("sync: persisted session corrupted, treating as absent")
		return
	}
	if len(records) == 0 {
		return
	}

	for _, c := range records {
		if err := s.jar.SetCookie(ctx, c); err != nil {
			s.log.WithError(err).WithField("name", c.Name).Error("sync: jar install failed")
		}
	}

	installed, err := s.jar.Cookies(ctx)
	if err != nil {
		s.log.WithError(err).Error("sync: jar read-back failed")
		return
	}
	now := s.now()
	for _, c := range installed {
		if IsValidAuthCookie(c, now) {
			s.log.WithField("cookies", len(records)).Info("sync: session restored")
			return
		}
	}
	s.log.Warn("sync: restore left no valid auth cookie, sign-in required")
}

// GetAuthSecret returns the signing secret for requests to domain, false when
// the user has no live session there.
func (s *Synchronizer) GetAuthSecret(ctx context.Context, domain string) (string, bool, error) {
	records, err := s.cookiesForDomain(ctx, domain)
	if err != nil {
		return "", false, err
	}
	secret, ok := SelectAuthSecret(records, s.now())
	return secret, ok, nil
}

// CookieHeader builds the Cookie header value for requests to domain: jar
// order, "name=value" pairs joined by "; ". Empty when no cookie applies.
func (s *Synchronizer) CookieHeader(ctx context.Context, domain string) (string, error) {
	records, err := s.cookiesForDomain(ctx, domain)
	if err != nil {
		return "", err
	}

	now := s.now()
	var b []byte
	for _, c := range records {
		if c.expired(now) {
			continue
		}
		if len(b) > 0 {
			b = append(b, "; "...)
		}
		b = append(b, c.Name...)
		b = append(b, '=')
		b = append(b, c.Value...)
	}
	return string(b), nil
}

// SignOut deletes the persisted session and clears any pending backup state.
// The live jar is left to the external sign-out flow.
func (s *Synchronizer) SignOut() error {
	return s.vault.Delete()
}

func (s *Synchronizer) cookiesForDomain(ctx context.Context, domain string) ([]Cookie, error) {
	records, err := s.jar.Cookies(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Cookie, 0, len(records))
	for _, c := range dedupeCookies(records) {
		if MatchesDomain(c.Domain, domain) {
			out = append(out, c)
		}
	}
	return out, nil
}

// requestHost turns a configured cookie-style domain (possibly dotted) into a
// host usable as a match target.
func requestHost(domain string) string {
	if len(domain) > 0 && domain[0] == '.' {
		return domain[1:]
	}
	return domain
}
