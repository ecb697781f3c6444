// Package registry implements the process-wide driver/span directory
// (spec §4.1 "Registry"): the three name maps (driver, module, span)
// plus the indexed span collection every other package resolves
// against. Grounded on zap_global_init/zap_span_create and the
// registry globals struct in zap_io.c, kept as an owned struct (spec
// §9 resolved open question) rather than a package-level singleton,
// the way flowpbx's DialogManager is constructed and passed around
// instead of living behind package globals.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/openzap/openzap/internal/channel"
	"github.com/openzap/openzap/internal/driver"
	"github.com/openzap/openzap/internal/span"
	"github.com/openzap/openzap/internal/status"
)

// Loader resolves an autoload module name (e.g. "zt_wanpipe") to a
// freshly registered driver, the Go stand-in for the original's
// dynamic shared-library loader (spec §1 explicitly puts dynamic
// module loading out of the core's scope; the registry only defines
// the retry contract around whatever resolves the name).
type Loader interface {
	Load(moduleName string) (driver.IoDriver, error)
}

// autoloadRetryWindow bounds lookup_driver_or_autoload to one retry per
// driver name per window (SPEC_FULL §4.1).
const autoloadRetryWindow = time.Second

// Registry is the process-wide driver/span directory (spec §4.1). The
// zero value is not usable; construct with New.
type Registry struct {
	mu sync.Mutex

	drivers   map[string]driver.IoDriver
	modules   map[string]string // module name -> prefix, as recorded by RegisterModule
	spans     map[uint32]*span.Span
	byName    map[string]*span.Span
	drvBySpan map[uint32]driver.IoDriver

	nextSpanID uint32

	limiters map[string]*rate.Limiter

	Loader Loader
	Logger *slog.Logger
}

// New constructs an empty Registry.
func New(loader Loader, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		drivers:   make(map[string]driver.IoDriver),
		modules:   make(map[string]string),
		spans:     make(map[uint32]*span.Span),
		byName:    make(map[string]*span.Span),
		drvBySpan: make(map[uint32]driver.IoDriver),
		limiters:  make(map[string]*rate.Limiter),
		Loader:    loader,
		Logger:    logger,
	}
}

// RegisterDriver installs d under its own Name() (spec §4.1
// register_driver).
func (r *Registry) RegisterDriver(d driver.IoDriver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := d.Name()
	if name == "" {
		return status.Errorf(status.Fail, "driver name empty")
	}
	if _, exists := r.drivers[name]; exists {
		return status.Errorf(status.Fail, "driver %q already registered", name)
	}
	r.drivers[name] = d
	return nil
}

// RegisterModule records the prefix a named module is loaded under.
// lookupDriverOrAutoload does not consult this record: on a miss it
// passes the bare driver name to Loader.Load, with no "prefix_" added.
func (r *Registry) RegisterModule(moduleName, prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[moduleName] = prefix
}

// lookupDriverOrAutoload resolves name, autoloading via r.Loader on a
// miss and retrying once (spec §4.1). The autoload retry is rate
// bounded to one attempt per name per autoloadRetryWindow (SPEC_FULL
// §4.1), so a hot misconfigured-span loop can't hammer the loader.
func (r *Registry) lookupDriverOrAutoload(name string) (driver.IoDriver, error) {
	r.mu.Lock()
	if d, ok := r.drivers[name]; ok {
		r.mu.Unlock()
		return d, nil
	}
	if r.Loader == nil {
		r.mu.Unlock()
		return nil, status.Errorf(status.Fail, "driver %q not registered", name)
	}
	lim, ok := r.limiters[name]
	if !ok {
		lim = rate.NewLimiter(rate.Every(autoloadRetryWindow), 1)
		r.limiters[name] = lim
	}
	allowed := lim.Allow()
	r.mu.Unlock()

	if !allowed {
		return nil, status.Errorf(status.Fail, "driver %q not registered (autoload rate-limited)", name)
	}

	d, err := r.Loader.Load(name)
	if err != nil {
		return nil, status.Errorf(status.Fail, "autoloading driver %q: %v", name, err)
	}
	if err := r.RegisterDriver(d); err != nil {
		return nil, err
	}
	return d, nil
}

// CreateSpan atomically picks the next span id, installs a fresh Span
// (default DIAL/RING/BUSY/ATTN tone map, trunk_type NONE, CONFIGURED)
// and binds it to driverName for later ConfigureSpan/OpenAny calls
// (spec §4.1 create_span).
func (r *Registry) CreateSpan(driverName, name string) (*span.Span, error) {
	d, err := r.lookupDriverOrAutoload(driverName)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if name != "" {
		if _, exists := r.byName[name]; exists {
			return nil, status.Errorf(status.Fail, "span %q already exists", name)
		}
	}
	r.nextSpanID++
	id := r.nextSpanID
	s := span.New(id, name, r.Logger)
	r.spans[id] = s
	if name != "" {
		r.byName[name] = s
	}
	r.drvBySpan[id] = d
	return s, nil
}

// FindSpanByID returns the span installed at id, or nil.
func (r *Registry) FindSpanByID(id uint32) *span.Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.spans[id]
}

// FindSpanByName returns the span registered under name, or nil.
func (r *Registry) FindSpanByName(name string) *span.Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byName[name]
}

// driverFor returns the IoDriver a span was created with.
func (r *Registry) driverFor(spanID uint32) (driver.IoDriver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drvBySpan[spanID]
	return d, ok
}

// Close destroys every channel on every configured span but leaves the
// Span structures themselves in place, the restart-safe composition of
// close_all_spans (spec §4.1), matching zap_span_close_all.
func (r *Registry) Close() {
	r.mu.Lock()
	spans := make([]*span.Span, 0, len(r.spans))
	for _, s := range r.spans {
		spans = append(spans, s)
	}
	r.mu.Unlock()

	for _, s := range spans {
		d, _ := r.driverFor(s.ID)
		for _, chanID := range s.Channels() {
			if d != nil {
				driver.InvokeChannelDestroy(d, s.ID, chanID)
			}
			s.RemoveChannel(chanID)
		}
	}
}

// Shutdown performs full teardown: destroys every span's driver-side
// resources and frees the Span structures, matching zap_global_destroy
// (spec §4.1 destroy_all). Close should be preferred for a restart;
// Shutdown is for process exit.
func (r *Registry) Shutdown() {
	r.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, d := range r.drvBySpan {
		driver.InvokeSpanDestroy(d, id)
	}
	r.spans = make(map[uint32]*span.Span)
	r.byName = make(map[string]*span.Span)
	r.drvBySpan = make(map[uint32]driver.IoDriver)
}

// ConfigureSpan pushes cfg through the owning driver's ConfigureSpan
// capability, then creates and installs a channel.Channel for every
// entry in cfg's FXO/FXS/EM/B/D/CAS channel lists (spec §6 "[span
// <driver> [name]]" surface). D-channel entries prefixed "lapd:" are
// installed as Q.931 (the signalling-bearing D channel); all others as
// Q.921.
func (r *Registry) ConfigureSpan(spanID uint32, cfg driver.SpanConfig) error {
	s := r.FindSpanByID(spanID)
	if s == nil {
		return status.Errorf(status.Fail, "span %d not found", spanID)
	}
	d, ok := r.driverFor(spanID)
	if !ok {
		return status.Errorf(status.Fail, "span %d has no bound driver", spanID)
	}
	if err := driver.InvokeConfigureSpan(d, spanID, cfg); err != nil {
		return err
	}

	next := uint32(1)
	add := func(typ channel.Type, n int) {
		for i := 0; i < n; i++ {
			c := channel.New(s, spanID, next, typ, r.Logger)
			s.AddChannel(next, c)
			next++
		}
	}
	add(channel.TypeFXO, len(cfg.FXOChannels))
	add(channel.TypeFXS, len(cfg.FXSChannels))
	add(channel.TypeEM, len(cfg.EMChannels))
	add(channel.TypeB, len(cfg.BChannels))
	add(channel.TypeCAS, len(cfg.CASChannels))
	for _, dch := range cfg.DChannels {
		typ := channel.TypeDQ921
		if len(dch) >= 5 && dch[:5] == "lapd:" {
			typ = channel.TypeDQ931
		}
		c := channel.New(s, spanID, next, typ, r.Logger)
		s.AddChannel(next, c)
		next++
	}
	if cfg.DTMFHangup != "" {
		s.SetDTMFHangup(cfg.DTMFHangup)
	}
	return nil
}
