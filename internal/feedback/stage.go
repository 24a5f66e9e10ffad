package feedback

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"tunevision/internal/artifacts"
	"tunevision/internal/config"
	"tunevision/internal/logging"
	"tunevision/internal/runs"
	"tunevision/internal/services"
	"tunevision/internal/services/llm"
	"tunevision/internal/stage"
)

const stageName = runs.StageFeedback

// ChatClient is the subset of the LLM client the stage uses.
type ChatClient interface {
	Chat(ctx context.Context, req llm.Request) (string, error)
	Configured() bool
	HealthCheck(ctx context.Context) error
}

// Stage requests feedback and a revised prompt.
type Stage struct {
	store  *artifacts.Store
	client ChatClient
	cfg    config.LLM
	logger *slog.Logger
}

// NewStage builds the feedback stage.
func NewStage(store *artifacts.Store, client ChatClient, cfg config.LLM, logger *slog.Logger) *Stage {
	return &Stage{
		store:  store,
		client: client,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "feedback"),
	}
}

// SetLogger routes stage logs through the run-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "feedback")
}

// Prepare loads the comparison artifact from disk. The on-disk copy is the
// source of truth so a corrupted file is caught here rather than masked by
// the in-memory result.
func (s *Stage) Prepare(_ context.Context, run *runs.Run) error {
	if s == nil || s.store == nil || s.client == nil {
		return services.Wrap(services.ErrValidation, stageName, "prepare", "Feedback stage is not configured", nil)
	}
	path, err := s.store.Resolve(run.ID, run.VideoBase, artifacts.KindComparison)
	if err != nil {
		return err
	}
	comparison, err := artifacts.ReadComparison(path)
	if err != nil {
		if errors.Is(err, services.ErrMalformedArtifact) {
			return err
		}
		return services.Wrap(services.ErrMalformedArtifact, stageName, "load comparison", path, err)
	}
	run.Comparison = &comparison
	if run.PromptText == "" {
		data, err := os.ReadFile(run.PromptPath)
		if err != nil {
			return services.Wrap(services.ErrSourceUnreadable, stageName, "read prompt", run.PromptPath, err)
		}
		run.PromptText = strings.TrimSpace(string(data))
	}
	return nil
}

// Execute writes the feedback and revised prompt artifacts. Service failures
// degrade the run; only filesystem and input integrity errors are returned.
func (s *Stage) Execute(ctx context.Context, run *runs.Run) error {
	logger := logging.WithContext(ctx, s.logger)
	fctx, err := NewContext(run.PromptText, run.Comparison)
	if err != nil {
		return err
	}

	result := artifacts.FeedbackResult{}
	if !s.client.Configured() {
		placeholder := MissingCredentialText(fctx)
		result.Feedback = placeholder
		result.Revised = placeholder
		result.Degraded = true
		result.Reason = "llm api key not configured"
		logging.WarnWithContext(logger, "llm credential missing; writing placeholders", "feedback_degraded",
			logging.String(logging.FieldErrorHint, "set OPENAI_API_KEY or llm.api_key"),
			logging.String(logging.FieldImpact, "no feedback or revised prompt for this run"),
		)
	} else {
		var reasons []string
		result.Feedback, err = s.complete(ctx, fctx, llm.Request{
			System:      FeedbackSystemPrompt,
			User:        feedbackMessage(fctx),
			Temperature: s.cfg.FeedbackTemperature,
			MaxTokens:   s.cfg.FeedbackMaxTokens,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			reasons = append(reasons, "feedback: "+err.Error())
			logging.WarnWithContext(logger, "feedback request failed", "feedback_degraded",
				logging.Error(err),
				logging.String(logging.FieldImpact, "feedback artifact holds a placeholder"),
			)
		}
		result.Revised, err = s.complete(ctx, fctx, llm.Request{
			System:      ReviseSystemPrompt,
			User:        reviseMessage(fctx),
			Temperature: s.cfg.ReviseTemperature,
			MaxTokens:   s.cfg.ReviseMaxTokens,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			reasons = append(reasons, "revise: "+err.Error())
			logging.WarnWithContext(logger, "revise request failed", "feedback_degraded",
				logging.Error(err),
				logging.String(logging.FieldImpact, "revised prompt artifact holds a placeholder"),
			)
		}
		if len(reasons) > 0 {
			result.Degraded = true
			result.Reason = strings.Join(reasons, "; ")
		}
	}
	result.RevisedPrompt = ExtractRevisedPrompt(result.Revised)

	for _, out := range []struct {
		kind artifacts.Kind
		text string
	}{
		{artifacts.KindFeedback, result.Feedback},
		{artifacts.KindRevisedPrompt, result.Revised},
	} {
		path, err := s.store.Resolve(run.ID, run.VideoBase, out.kind)
		if err != nil {
			return err
		}
		if err := s.store.WriteText(path, out.text); err != nil {
			run.Record(stageName, out.kind, path, err)
			return err
		}
		run.Record(stageName, out.kind, path, nil)
	}

	run.Feedback = &result
	run.Degraded = result.Degraded
	logger.Info("feedback written",
		logging.Bool("degraded", result.Degraded),
		logging.Int("revised_prompt_words", len(strings.Fields(result.RevisedPrompt))),
	)
	return nil
}

// complete returns the model text, or a placeholder plus the wrapped service
// error when the request failed.
func (s *Stage) complete(ctx context.Context, fctx Context, req llm.Request) (string, error) {
	text, err := s.client.Chat(ctx, req)
	if err == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text), nil
	}
	if err == nil {
		err = errors.New("empty completion")
	}
	wrapped := services.Wrap(services.ErrServiceUnavailable, stageName, "chat completion", "LLM request failed", err)
	return ServiceErrorText(fctx, err), wrapped
}

// HealthCheck pings the model. A missing key or failed ping is reported as
// degraded since the stage still produces placeholder artifacts.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if s == nil || s.client == nil {
		return stage.Unhealthy(stageName, "llm client not configured")
	}
	if !s.client.Configured() {
		return stage.Degraded(stageName, "api key not configured; placeholders will be written")
	}
	if err := s.client.HealthCheck(ctx); err != nil {
		return stage.Degraded(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}
