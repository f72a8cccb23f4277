// Package coordinator implements the background authorization engine: it
// turns "no stored rule decides this request" into exactly one user decision
// under concurrency, buffers requests while the vault is locked, and fulfills
// authorized requests against the injected capability provider.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nostrvault/nostrvault/internal/capability"
	"github.com/nostrvault/nostrvault/internal/common"
	"github.com/nostrvault/nostrvault/internal/config"
	"github.com/nostrvault/nostrvault/internal/logging"
	"github.com/nostrvault/nostrvault/internal/policy"
	"github.com/nostrvault/nostrvault/internal/storage"
	"github.com/nostrvault/nostrvault/internal/vault"
	"github.com/nostrvault/nostrvault/internal/vault/models"
)

const recklessKey = "reckless"

// pending is one queued or shown authorization decision. All waiters of the
// same dedupe key share a single pending and observe the same outcome.
type pending struct {
	id        string
	dedupeKey string
	req       Request
	identity  string

	done     chan struct{}
	approved bool
	err      error

	window WindowHandle
	timer  *time.Timer
}

// buffered is a capability request parked while the vault is locked.
type buffered struct {
	req    Request
	done   chan struct{}
	result *Result
	err    error
}

// Coordinator owns the prompt queue and the locked-request buffer. It is
// constructed once per process lifetime; Shutdown clears every timer
// deterministically.
type Coordinator struct {
	vault    *vault.Manager
	caps     capability.Provider
	settings storage.SettingsStore
	opener   WindowOpener
	cfg      *config.Config
	log      logging.Logger

	mu           sync.Mutex
	pendingByKey map[string]*pending
	pendingByID  map[string]*pending
	queue        []*pending
	active       *pending

	lockedBuffer      []*buffered
	unlockPromptShown bool
	unlockWindow      WindowHandle
	unlockGen         int

	shutdown bool
}

func New(v *vault.Manager, caps capability.Provider, settings storage.SettingsStore, opener WindowOpener, cfg *config.Config, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Coordinator{
		vault:        v,
		caps:         caps,
		settings:     settings,
		opener:       opener,
		cfg:          cfg,
		log:          log,
		pendingByKey: make(map[string]*pending),
		pendingByID:  make(map[string]*pending),
	}
}

// RequestCapability arbitrates and, if allowed, fulfills a capability
// request. While the vault is locked the request is buffered and an unlock
// prompt is driven; once a policy verdict is reached an unknown verdict
// becomes a user prompt. The origin only ever observes a fulfilled result or
// common.ErrPermissionDenied / common.ErrCapacityExceeded; the reason for a
// denial is never leaked back to the page.
func (c *Coordinator) RequestCapability(ctx context.Context, req Request) (*Result, error) {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return nil, common.ErrPermissionDenied
	}
	if c.vault.State() != vault.Unlocked {
		if len(c.lockedBuffer) >= c.cfg.BufferCapacity {
			c.mu.Unlock()
			return nil, common.ErrCapacityExceeded
		}
		b := &buffered{req: req, done: make(chan struct{})}
		c.lockedBuffer = append(c.lockedBuffer, b)
		c.ensureUnlockPromptLocked(ctx)
		c.mu.Unlock()

		select {
		case <-b.done:
			return b.result, b.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.mu.Unlock()

	result, p, ident, err := c.evaluate(ctx, req)
	if err != nil || p == nil {
		return result, originErr(err)
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if p.err != nil || !p.approved {
		return nil, common.ErrPermissionDenied
	}
	res, err := c.execute(ident, req)
	return res, originErr(err)
}

// evaluate runs the non-blocking part of arbitration: reckless short
// circuit, policy verdict, and, on unknown, enqueueing a prompt. It returns
// either a final result/error or the pending decision to wait on.
func (c *Coordinator) evaluate(ctx context.Context, req Request) (*Result, *pending, *models.Identity, error) {
	ident, err := c.resolveIdentity(req.IdentityID)
	if err != nil {
		return nil, nil, nil, err
	}

	if c.reckless(ctx).Approves(req.Host) {
		c.log.Debug(ctx, "reckless mode approval", "host", req.Host, "method", string(req.Method))
		result, err := c.execute(ident, req)
		return result, nil, nil, err
	}

	perms, err := c.vault.Permissions()
	if err != nil {
		return nil, nil, nil, err
	}
	switch policy.Evaluate(perms, ident.ID, req.Host, req.Method, eventKind(req)) {
	case policy.Allow:
		result, err := c.execute(ident, req)
		return result, nil, nil, err
	case policy.Deny:
		return nil, nil, nil, common.ErrPermissionDenied
	}

	p, err := c.enqueue(ctx, ident.ID, req)
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, p, ident, nil
}

// enqueue registers a pending decision for the request, coalescing it with
// an in-flight identical request, and shows it immediately when no prompt is
// visible.
func (c *Coordinator) enqueue(ctx context.Context, identityID string, req Request) (*pending, error) {
	key := dedupeKey(req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.pendingByKey[key]; ok {
		return existing, nil
	}
	if len(c.queue) >= c.cfg.QueueCapacity {
		return nil, common.ErrCapacityExceeded
	}

	p := &pending{
		id:        uuid.NewString(),
		dedupeKey: key,
		req:       req,
		identity:  identityID,
		done:      make(chan struct{}),
	}
	c.pendingByKey[key] = p
	c.pendingByID[p.id] = p

	if c.active == nil {
		c.showLocked(ctx, p)
	} else {
		c.queue = append(c.queue, p)
	}
	return p, nil
}

// showLocked makes p the visible prompt. Caller holds c.mu.
func (c *Coordinator) showLocked(ctx context.Context, p *pending) {
	c.active = p
	prompt := Prompt{
		ID:         p.id,
		Kind:       PromptAuthorization,
		Host:       common.NormalizeHost(p.req.Host),
		Method:     p.req.Method,
		EventKind:  eventKind(p.req),
		QueueDepth: len(c.queue),
	}

	handle, err := c.opener.Open(ctx, prompt)
	if err != nil {
		c.log.Error(ctx, "opening prompt window", "error", err)
		c.removeLocked(p)
		c.finalizeLocked(p, false, common.ErrPromptWindowClosed)
		c.advanceLocked(ctx)
		return
	}
	p.window = handle
	p.timer = time.AfterFunc(c.cfg.PromptTimeout, func() {
		c.expire(p.id, common.ErrPromptTimeout)
	})
	go c.watchWindow(p, handle)
}

func (c *Coordinator) watchWindow(p *pending, handle WindowHandle) {
	select {
	case <-handle.Closed():
		c.expire(p.id, common.ErrPromptWindowClosed)
	case <-p.done:
	}
}

// expire fails a single pending decision (timeout or window closed) and
// advances the queue. Other queued requests are untouched.
func (c *Coordinator) expire(id string, reason error) {
	ctx := context.Background()

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pendingByID[id]
	if !ok {
		return
	}
	c.log.Warn(ctx, "prompt abandoned", "id", id, "reason", reason.Error())
	c.removeLocked(p)
	c.finalizeLocked(p, false, reason)
	if c.active == p {
		c.advanceLocked(ctx)
	}
}

// Resolve records the user's decision for a shown prompt, persists a rule
// for the non-"-once" verdicts, and advances the queue. The persisted rule
// is written through the vault (store then session) before the queue moves,
// so it affects every subsequent evaluation in this session.
func (c *Coordinator) Resolve(ctx context.Context, requestID string, d Decision) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pendingByID[requestID]
	if !ok {
		return common.ErrNotFound
	}

	if err := c.persistDecision(ctx, p, d); err != nil {
		return err
	}

	c.removeLocked(p)
	c.finalizeLocked(p, d.approved(), nil)
	if c.active == p {
		c.advanceLocked(ctx)
	}
	return nil
}

func (c *Coordinator) persistDecision(ctx context.Context, p *pending, d Decision) error {
	var action models.Action
	var kind *int
	switch d {
	case DecisionApprove:
		action, kind = models.ActionAllow, eventKind(p.req)
	case DecisionApproveAll:
		action = models.ActionAllow
	case DecisionReject:
		action, kind = models.ActionDeny, eventKind(p.req)
	case DecisionRejectAll:
		action = models.ActionDeny
	case DecisionApproveOnce, DecisionRejectOnce:
		return nil
	default:
		return fmt.Errorf("unknown decision %q", d)
	}

	_, err := c.vault.AddPermission(ctx, models.Permission{
		IdentityID: p.identity,
		Host:       p.req.Host,
		Method:     p.req.Method,
		Action:     action,
		Kind:       kind,
	})
	return err
}

// removeLocked unregisters p from the maps and, if queued, from the queue.
// Caller holds c.mu.
func (c *Coordinator) removeLocked(p *pending) {
	delete(c.pendingByID, p.id)
	delete(c.pendingByKey, p.dedupeKey)
	for i, q := range c.queue {
		if q == p {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}
}

// finalizeLocked resolves p's waiters exactly once and releases its window
// and timer. Caller holds c.mu.
func (c *Coordinator) finalizeLocked(p *pending, approved bool, err error) {
	select {
	case <-p.done:
		return
	default:
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	if p.window != nil {
		p.window.Close()
	}
	p.approved = approved
	p.err = err
	close(p.done)
}

// advanceLocked dismisses the active slot and shows the next queued prompt.
// Caller holds c.mu.
func (c *Coordinator) advanceLocked(ctx context.Context) {
	c.active = nil
	if len(c.queue) == 0 {
		return
	}
	next := c.queue[0]
	c.queue = c.queue[1:]
	c.showLocked(ctx, next)
}

// ensureUnlockPromptLocked opens the unlock window if none is showing.
// Caller holds c.mu.
func (c *Coordinator) ensureUnlockPromptLocked(ctx context.Context) {
	if c.unlockPromptShown {
		return
	}
	c.unlockPromptShown = true
	c.unlockGen++
	gen := c.unlockGen

	handle, err := c.opener.Open(ctx, Prompt{ID: uuid.NewString(), Kind: PromptUnlock})
	if err != nil {
		c.log.Error(ctx, "opening unlock window", "error", err)
		c.unlockPromptShown = false
		c.failBufferLocked(common.ErrPermissionDenied)
		return
	}
	c.unlockWindow = handle
	go func() {
		<-handle.Closed()
		c.mu.Lock()
		defer c.mu.Unlock()
		// A successful unlock already closed this window and reset the flag.
		if c.unlockGen != gen || !c.unlockPromptShown {
			return
		}
		c.unlockPromptShown = false
		c.unlockWindow = nil
		c.failBufferLocked(common.ErrPermissionDenied)
	}()
}

// failBufferLocked rejects every buffered request. Caller holds c.mu.
func (c *Coordinator) failBufferLocked(err error) {
	for _, b := range c.lockedBuffer {
		b.err = err
		close(b.done)
	}
	c.lockedBuffer = nil
}

// Unlock verifies the password through the vault manager and, on success,
// replays every buffered request through the normal evaluation path in
// arrival order. Buffered requests enqueue before any request arriving after
// the unlock, even though their resolutions may complete out of order.
func (c *Coordinator) Unlock(ctx context.Context, password string) error {
	if err := c.vault.Unlock(ctx, password); err != nil {
		return err
	}

	c.mu.Lock()
	c.unlockPromptShown = false
	c.unlockGen++
	if c.unlockWindow != nil {
		c.unlockWindow.Close()
		c.unlockWindow = nil
	}
	replay := c.lockedBuffer
	c.lockedBuffer = nil
	c.mu.Unlock()

	for _, b := range replay {
		result, p, ident, err := c.evaluate(ctx, b.req)
		if p == nil {
			b.result, b.err = result, originErr(err)
			close(b.done)
			continue
		}
		go func(b *buffered, p *pending, ident *models.Identity) {
			<-p.done
			if p.err != nil || !p.approved {
				b.err = common.ErrPermissionDenied
			} else {
				b.result, b.err = c.execute(ident, b.req)
				b.err = originErr(b.err)
			}
			close(b.done)
		}(b, p, ident)
	}
	return nil
}

// Lock locks the vault and cancels everything outstanding: all pending
// prompts, their timers and windows, and the locked-request buffer.
func (c *Coordinator) Lock(ctx context.Context) error {
	c.cancelOutstanding()
	return c.vault.Lock(ctx)
}

// Shutdown clears all timers and rejects everything outstanding. The
// coordinator accepts no further requests.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()
	c.cancelOutstanding()
	c.log.Info(ctx, "coordinator shut down")
}

func (c *Coordinator) cancelOutstanding() {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := make([]*pending, 0, len(c.pendingByID))
	for _, p := range c.pendingByID {
		all = append(all, p)
	}
	for _, p := range all {
		c.removeLocked(p)
		c.finalizeLocked(p, false, common.ErrPermissionDenied)
	}
	c.queue = nil
	c.active = nil

	if c.unlockWindow != nil {
		c.unlockWindow.Close()
		c.unlockWindow = nil
	}
	c.unlockPromptShown = false
	c.unlockGen++
	c.failBufferLocked(common.ErrPermissionDenied)
}

// GetPolicyDecision is the read-only evaluation surface for UI display; it
// never prompts.
func (c *Coordinator) GetPolicyDecision(identityID, host string, method models.Method, kind *int) (policy.Verdict, error) {
	perms, err := c.vault.Permissions()
	if err != nil {
		return policy.Unknown, err
	}
	return policy.Evaluate(perms, identityID, host, method, kind), nil
}

// PendingCount reports queued plus visible prompts, for UI badges.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.queue)
	if c.active != nil {
		n++
	}
	return n
}

// SetReckless stores the reckless-mode override in the settings partition.
func (c *Coordinator) SetReckless(ctx context.Context, r policy.Reckless) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.settings.Set(ctx, recklessKey, raw)
}

func (c *Coordinator) reckless(ctx context.Context) policy.Reckless {
	raw, err := c.settings.Get(ctx, recklessKey)
	if errors.Is(err, common.ErrNotFound) {
		return policy.Reckless{}
	}
	if err != nil {
		c.log.Warn(ctx, "reading reckless settings", "error", err)
		return policy.Reckless{}
	}
	var r policy.Reckless
	if err := json.Unmarshal(raw, &r); err != nil {
		c.log.Warn(ctx, "parsing reckless settings", "error", err)
		return policy.Reckless{}
	}
	return r
}

// originErr hides vault-state detail from origins. A request that slips
// past the locked-state check just as the vault locks reads as an ordinary
// denial, never as a vault lifecycle error.
func originErr(err error) error {
	if errors.Is(err, common.ErrVaultNotUnlocked) {
		return common.ErrPermissionDenied
	}
	return err
}

func (c *Coordinator) resolveIdentity(id string) (*models.Identity, error) {
	if id != "" {
		return c.vault.Identity(id)
	}
	ident, err := c.vault.SelectedIdentity()
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, common.ErrNotFound
	}
	return ident, nil
}

// execute fulfills an authorized request against the capability provider.
func (c *Coordinator) execute(ident *models.Identity, req Request) (*Result, error) {
	switch req.Method {
	case models.MethodGetPublicKey:
		pub, err := c.caps.PublicKey(ident.PrivateKeyHex)
		if err != nil {
			return nil, err
		}
		return &Result{PublicKey: pub}, nil
	case models.MethodSignEvent:
		if req.Event == nil {
			return nil, errors.New("signEvent request without event template")
		}
		evt, err := c.caps.SignEvent(ident.PrivateKeyHex, *req.Event)
		if err != nil {
			return nil, err
		}
		return &Result{Event: evt}, nil
	case models.MethodGetRelays:
		relays, err := c.vault.Relays(ident.ID)
		if err != nil {
			return nil, err
		}
		return &Result{Relays: relays}, nil
	case models.MethodNIP04Encrypt:
		text, err := c.caps.NIP04Encrypt(ident.PrivateKeyHex, req.PeerPubKey, req.Text)
		if err != nil {
			return nil, err
		}
		return &Result{Text: text}, nil
	case models.MethodNIP04Decrypt:
		text, err := c.caps.NIP04Decrypt(ident.PrivateKeyHex, req.PeerPubKey, req.Text)
		if err != nil {
			return nil, err
		}
		return &Result{Text: text}, nil
	case models.MethodNIP44Encrypt:
		text, err := c.caps.NIP44Encrypt(ident.PrivateKeyHex, req.PeerPubKey, req.Text)
		if err != nil {
			return nil, err
		}
		return &Result{Text: text}, nil
	case models.MethodNIP44Decrypt:
		text, err := c.caps.NIP44Decrypt(ident.PrivateKeyHex, req.PeerPubKey, req.Text)
		if err != nil {
			return nil, err
		}
		return &Result{Text: text}, nil
	default:
		return nil, fmt.Errorf("unsupported method %q", req.Method)
	}
}
