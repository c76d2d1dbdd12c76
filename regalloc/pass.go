// Package regalloc implements the x86-64 register allocation core: a
// live-interval collector over a multi-level program-counter order, a
// first-fit greedy allocator with no spilling, and a post-allocation
// rewriter that lowers pseudo-moves into real moves and exchanges.
package regalloc

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/orizon-lang/x64regalloc/lir"
	"github.com/orizon-lang/x64regalloc/lir/x64"
)

// supportedIRVersions is the range of lir.Function.IRVersion values this
// package understands. A function built against an incompatible IR
// shape is rejected at Create rather than misinterpreted partway through
// collection.
var supportedIRVersions = mustConstraint(">=1.0.0, <2.0.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(fmt.Sprintf("regalloc: invalid built-in version constraint %q: %v", s, err))
	}

	return c
}

// Config holds Pass construction options, closed over by Option
// functions in the teacher's own configuration idiom.
type Config struct {
	logger       Logger
	minIRVersion string
}

// Option configures a Pass at Create time.
type Option func(*Config)

// WithLogger installs a sink for trace diagnostics emitted during Run.
// The default is a no-op logger.
func WithLogger(l Logger) Option {
	return func(c *Config) { c.logger = l }
}

// WithMinIRVersion overrides the floor of the accepted IR version range
// (still bounded above by the package's supported major version). It
// exists for callers migrating a front-end gradually; most callers never
// need it.
func WithMinIRVersion(v string) Option {
	return func(c *Config) { c.minIRVersion = v }
}

// Pass is one register allocation run over a single lir.Function.
type Pass struct {
	fn     *lir.Function
	logger Logger

	compounds []*LiveCompound
	done      bool
}

// Create validates fn's IR version and prepares a Pass. It performs no
// allocation work itself; call Run to execute collect/allocate/rewrite.
func Create(fn *lir.Function, opts ...Option) (*Pass, error) {
	cfg := &Config{logger: nopLogger{}}
	for _, opt := range opts {
		opt(cfg)
	}

	constraint := supportedIRVersions

	if cfg.minIRVersion != "" {
		c, err := semver.NewConstraint(fmt.Sprintf(">=%s, <2.0.0", cfg.minIRVersion))
		if err != nil {
			return nil, fmt.Errorf("regalloc: invalid minimum IR version %q: %w", cfg.minIRVersion, err)
		}

		constraint = c
	}

	versionStr := fn.IRVersion
	if versionStr == "" {
		versionStr = "1.0.0"
	}

	ver, err := semver.NewVersion(versionStr)
	if err != nil {
		return nil, &allocError{category: categoryVersion, message: fmt.Sprintf("function %q has unparseable IR version %q: %v", fn.Name, versionStr, err)}
	}

	if !constraint.Check(ver) {
		return nil, &allocError{category: categoryVersion, message: fmt.Sprintf("function %q IR version %s is outside the supported range %s", fn.Name, ver, constraint)}
	}

	return &Pass{fn: fn, logger: cfg.logger}, nil
}

// Run executes the three-stage pipeline (collect, allocate, rewrite)
// over the Pass's function. Every failure mode spec §7 names is fatal
// and surfaces here as a returned error rather than a panic; Run itself
// is the only place that recovers one.
func (p *Pass) Run() (err error) {
	defer recoverFatal(&err)

	p.compounds = collect(p.fn, p.logger)
	allocate(p.compounds, p.logger)
	rewrite(p.fn, p.compounds, p.logger)
	p.done = true

	return nil
}

// Summary renders a human-readable report of final register assignments
// per value: a header line, then one line per compound followed by one
// line per interval of that compound, in the teacher's
// PrintAllocationResults style. Valid only after a successful Run.
func (p *Pass) Summary() string {
	var b strings.Builder

	if !p.done {
		return "regalloc: Pass has not completed a successful Run\n"
	}

	fmt.Fprintf(&b, "function %s: %d compound(s)\n", p.fn.Name, len(p.compounds))

	for i, cp := range p.compounds {
		fmt.Fprintf(&b, "  compound %d: register %s, %d interval(s)\n", i, x64.RegisterName(cp.AllocatedRegister), len(cp.Intervals))

		for _, iv := range cp.Intervals {
			fmt.Fprintf(&b, "    %p: %s .. %s\n", iv.value, iv.originPc, iv.finalPc)
		}
	}

	return b.String()
}
