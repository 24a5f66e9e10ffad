package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"tunevision/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a per-test temp directory. The LLM key
// is empty so feedback runs take the placeholder path unless WithAPIKey is set.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataRoot = filepath.Join(base, "data")
	cfgVal.Paths.PromptDir = filepath.Join(base, "prompts")
	cfgVal.Paths.VideoDir = filepath.Join(base, "videos")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.LLM.APIKey = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithAPIKey sets the LLM credential and endpoint.
func WithAPIKey(key, baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = key
		if baseURL != "" {
			b.cfg.LLM.BaseURL = baseURL
		}
	}
}

// WithDirs creates the prompt, video and data directories up front.
func WithDirs() ConfigOption {
	return func(b *configBuilder) {
		for _, dir := range []string{b.cfg.Paths.DataRoot, b.cfg.Paths.PromptDir, b.cfg.Paths.VideoDir, b.cfg.Paths.StateDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				b.t.Fatalf("mkdir %s: %v", dir, err)
			}
		}
	}
}

// WithStubbedBinaries writes stub executables that exit 0 for the provided
// names and prepends them to PATH. If names is empty, every external tool
// tunevision invokes is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{
				b.cfg.Extraction.FFmpegBinary,
				b.cfg.Extraction.FFprobeBinary,
				b.cfg.Scorer.Command,
				b.cfg.Detector.Command,
			}
		}
		for _, name := range names {
			WriteScript(b.t, b.binDir(), name, "exit 0\n")
		}
		b.prependPath()
	}
}

// WithStubScript installs a named stub whose body is the given shell script.
func WithStubScript(name, body string) ConfigOption {
	return func(b *configBuilder) {
		WriteScript(b.t, b.binDir(), name, body)
		b.prependPath()
	}
}

func (b *configBuilder) binDir() string {
	dir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	return dir
}

func (b *configBuilder) prependPath() {
	dir := b.binDir()
	current := os.Getenv("PATH")
	if filepath.SplitList(current)[0] == dir {
		return
	}
	b.t.Setenv("PATH", dir+string(os.PathListSeparator)+current)
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataRoot)
}
