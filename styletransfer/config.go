package styletransfer

import (
	"fmt"
	"strings"

	"go_styletransfer/core"
	"go_styletransfer/pixel"
	"go_styletransfer/stylenet"
)

// Default configuration values.
const (
	DefaultNumThreads      = stylenet.DefaultNumThreads
	DefaultDownscaleRatio  = 2
	DefaultLoadConcurrency = NumStyles
)

// OutputMode selects how the reduced network output is written back.
type OutputMode string

const (
	// OutputUpscale resizes the output back to the full bitmap.
	OutputUpscale OutputMode = "upscale"
	// OutputReduced writes the reduced image into the top-left corner and
	// leaves the rest of the bitmap untouched.
	OutputReduced OutputMode = "reduced"
)

func (m OutputMode) resizeMode() pixel.ResizeMode {
	if m == OutputReduced {
		return pixel.KeepTensorSize
	}
	return pixel.ResizeToBitmap
}

// LoadPolicy decides what Initialize does when a slot fails to load.
type LoadPolicy string

const (
	// LoadPolicyLenient logs the failure, marks the slot not ready and
	// carries on.
	LoadPolicyLenient LoadPolicy = "lenient"
	// LoadPolicyStrict aborts on the first failure and releases every slot.
	LoadPolicyStrict LoadPolicy = "strict"
)

// Config holds style transfer runtime settings.
type Config struct {
	// NumThreads is the intra-op thread count of every network.
	NumThreads int
	// LightMode recycles intermediate blobs during extraction.
	LightMode bool
	// DownscaleRatio divides the bitmap size before inference.
	DownscaleRatio int
	// OutputMode controls write-back of the reduced output.
	OutputMode OutputMode
	// LoadPolicy controls partial load handling.
	LoadPolicy LoadPolicy
	// LoadConcurrency bounds how many slots load at once.
	LoadConcurrency int
	// InputBlob is the index of the network input blob.
	InputBlob int
	// OutputBlob is the index of the network output blob, or -1 for the last
	// blob declared by the descriptor.
	OutputBlob int
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		NumThreads:      DefaultNumThreads,
		LightMode:       true,
		DownscaleRatio:  DefaultDownscaleRatio,
		OutputMode:      OutputUpscale,
		LoadPolicy:      LoadPolicyLenient,
		LoadConcurrency: DefaultLoadConcurrency,
		InputBlob:       0,
		OutputBlob:      -1,
	}
}

// LoadConfig reads the STYLE_* environment variables on top of the defaults.
//
// Environment Variables:
//   - STYLE_NUM_THREADS: intra-op threads (default: 4)
//   - STYLE_LIGHT_MODE: recycle intermediate blobs (default: true)
//   - STYLE_DOWNSCALE: inference downscale ratio (default: 2)
//   - STYLE_OUTPUT_MODE: upscale|reduced (default: upscale)
//   - STYLE_LOAD_POLICY: lenient|strict (default: lenient)
//   - STYLE_LOAD_CONCURRENCY: slots loaded in parallel (default: 5)
func LoadConfig() (Config, error) {
	def := DefaultConfig()
	cfg := Config{
		NumThreads:      core.ParseIntEnv("STYLE_NUM_THREADS", def.NumThreads),
		LightMode:       core.ParseBoolEnv("STYLE_LIGHT_MODE", def.LightMode),
		DownscaleRatio:  core.ParseIntEnv("STYLE_DOWNSCALE", def.DownscaleRatio),
		OutputMode:      OutputMode(strings.ToLower(core.GetEnvOrDefault("STYLE_OUTPUT_MODE", string(def.OutputMode)))),
		LoadPolicy:      LoadPolicy(strings.ToLower(core.GetEnvOrDefault("STYLE_LOAD_POLICY", string(def.LoadPolicy)))),
		LoadConcurrency: core.ParseIntEnv("STYLE_LOAD_CONCURRENCY", def.LoadConcurrency),
		InputBlob:       def.InputBlob,
		OutputBlob:      def.OutputBlob,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration and returns a *core.ConfigError.
func (c Config) Validate() error {
	if c.NumThreads < 1 {
		return core.ErrInvalidValue("STYLE_NUM_THREADS", c.NumThreads, "an integer >= 1")
	}
	if c.DownscaleRatio < 1 {
		return core.ErrInvalidValue("STYLE_DOWNSCALE", c.DownscaleRatio, "an integer >= 1")
	}
	switch c.OutputMode {
	case OutputUpscale, OutputReduced:
	default:
		return core.ErrInvalidValue("STYLE_OUTPUT_MODE", c.OutputMode, "upscale or reduced")
	}
	switch c.LoadPolicy {
	case LoadPolicyLenient, LoadPolicyStrict:
	default:
		return core.ErrInvalidValue("STYLE_LOAD_POLICY", c.LoadPolicy, "lenient or strict")
	}
	if c.LoadConcurrency < 1 {
		return core.ErrInvalidValue("STYLE_LOAD_CONCURRENCY", c.LoadConcurrency, "an integer >= 1")
	}
	if c.InputBlob < 0 {
		return core.ErrInvalidValue("input blob", c.InputBlob, "an index >= 0")
	}
	if c.OutputBlob < -1 {
		return core.ErrInvalidValue("output blob", c.OutputBlob, "an index >= 0, or -1 for the last blob")
	}
	return nil
}

// String summarises the configuration for startup logs.
func (c Config) String() string {
	return fmt.Sprintf("threads=%d light=%v downscale=%d output=%s policy=%s",
		c.NumThreads, c.LightMode, c.DownscaleRatio, c.OutputMode, c.LoadPolicy)
}
