package config

const (
	defaultDataRoot          = "data"
	defaultPromptDir         = "data/prompts"
	defaultVideoDir          = "ComfyUI/output"
	defaultStateDir          = "~/.local/state/tunevision"
	defaultLogDir            = "~/.local/share/tunevision/logs"
	defaultFrameInterval     = 10
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultScorerCommand     = "tunevision-clip"
	defaultScorerModel       = "ViT-B/32"
	defaultDetectorCommand   = "tunevision-yolo"
	defaultDetectorModel     = "yolov8m.pt"
	defaultDevice            = "auto"
	defaultLLMBaseURL        = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel          = "gpt-3.5-turbo"
	defaultLLMTimeout        = 60
	defaultFeedbackTemp      = 0.7
	defaultReviseTemp        = 0.6
	defaultFeedbackMaxTokens = 400
	defaultReviseMaxTokens   = 600
	defaultPollInterval      = 2
	defaultDispatch          = DispatchProcess
	defaultMaxConcurrentRuns = 1
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Dispatch modes for the watch loop.
const (
	DispatchProcess = "process"
	DispatchTask    = "task"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataRoot:  defaultDataRoot,
			PromptDir: defaultPromptDir,
			VideoDir:  defaultVideoDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		Extraction: Extraction{
			FrameInterval: defaultFrameInterval,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Scorer: Scorer{
			Command: defaultScorerCommand,
			Model:   defaultScorerModel,
			Device:  defaultDevice,
		},
		Detector: Detector{
			Command: defaultDetectorCommand,
			Model:   defaultDetectorModel,
			Device:  defaultDevice,
		},
		LLM: LLM{
			BaseURL:             defaultLLMBaseURL,
			Model:               defaultLLMModel,
			TimeoutSeconds:      defaultLLMTimeout,
			FeedbackTemperature: defaultFeedbackTemp,
			ReviseTemperature:   defaultReviseTemp,
			FeedbackMaxTokens:   defaultFeedbackMaxTokens,
			ReviseMaxTokens:     defaultReviseMaxTokens,
		},
		Watch: Watch{
			PollInterval:      defaultPollInterval,
			Dispatch:          defaultDispatch,
			MaxConcurrentRuns: defaultMaxConcurrentRuns,
			VideoExtensions:   []string{".mp4"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
