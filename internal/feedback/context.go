package feedback

import (
	"strings"

	"tunevision/internal/artifacts"
	"tunevision/internal/services"
)

// Context is the typed input to both language model requests.
type Context struct {
	Prompt          string
	PromptObjects   []string
	DetectedObjects []string
	AppearedObjects []string
	MissingObjects  []string
}

// NewContext builds a Context from the prompt text and comparison result.
func NewContext(prompt string, comparison *artifacts.ComparisonResult) (Context, error) {
	if comparison == nil {
		return Context{}, services.Wrap(services.ErrMalformedArtifact, stageName, "build context", "comparison result unavailable", nil)
	}
	return Context{
		Prompt:          strings.TrimSpace(prompt),
		PromptObjects:   comparison.PromptObjects,
		DetectedObjects: comparison.DetectedObjects,
		AppearedObjects: comparison.AppearedObjects,
		MissingObjects:  comparison.MissingObjects,
	}, nil
}

// Summary renders the analysis block embedded in placeholders.
func (c Context) Summary() string {
	var b strings.Builder
	b.WriteString("Analysis:\n")
	b.WriteString("- Prompt objects: " + joinOrNone(c.PromptObjects) + "\n")
	b.WriteString("- Appeared objects: " + joinOrNone(c.AppearedObjects) + "\n")
	b.WriteString("- Missing objects: " + joinOrNone(c.MissingObjects))
	return b.String()
}

// MissingCredentialText is written in place of model output when no API key
// is configured.
func MissingCredentialText(c Context) string {
	return FeedbackHeading + "\n" +
		"Could not generate feedback because the OpenAI API Key is not configured. " +
		"Set OPENAI_API_KEY (or llm.api_key in the config file) and re-run.\n\n" +
		c.Summary() + "\n\n" +
		RevisedHeading + "\nN/A"
}

// ServiceErrorText is written in place of model output when the request failed.
func ServiceErrorText(c Context, err error) string {
	return FeedbackHeading + "\n" +
		"An error occurred while communicating with the OpenAI API: " + err.Error() + "\n\n" +
		c.Summary() + "\n\n" +
		RevisedHeading + "\nN/A"
}
