package feedback

import (
	"fmt"
	"regexp"
	"strings"
)

// CLIP text encoder context length and the target the revised prompt is asked
// to stay under.
const (
	CLIPTokenLimit  = 77
	RevisedTokenCap = 75
)

// FeedbackSystemPrompt frames the missing-object explanation request.
const FeedbackSystemPrompt = "You are an assistant that helps users refine video generation prompts."

// ReviseSystemPrompt frames the combined feedback and revision request.
const ReviseSystemPrompt = "You are an expert assistant for analyzing and improving video generation prompts. " +
	"You provide structured feedback and a revised prompt according to user instructions, " +
	"including any specified length or token constraints for the revised prompt."

// Headings the revision response is asked to use.
const (
	FeedbackHeading = "Feedback:"
	RevisedHeading  = "Improved Prompt:"
)

func feedbackMessage(c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prompt: %q\n\n", c.Prompt)
	fmt.Fprintf(&b, "Objects mentioned in the prompt: %s\n", joinOrNone(c.PromptObjects))
	fmt.Fprintf(&b, "Objects detected in the video: %s\n", joinOrNone(c.DetectedObjects))
	fmt.Fprintf(&b, "Objects missing from the video: %s\n\n", joinOrNone(c.MissingObjects))
	b.WriteString("Based on this information, write a feedback message in English that explains to the user ")
	b.WriteString("which objects were missing in the generated video and suggest how to improve the prompt.")
	return b.String()
}

func reviseMessage(c Context) string {
	var b strings.Builder
	b.WriteString("You are an expert AI assistant specializing in improving prompts for video generation.\n")
	b.WriteString("Based on the analysis of a previously generated video, your task is to provide feedback and a refined prompt.\n\n")
	fmt.Fprintf(&b, "Original User Prompt:\n%q\n\n", c.Prompt)
	b.WriteString("Analysis:\n")
	fmt.Fprintf(&b, "- Objects mentioned in the original prompt: %s\n", joinOrNone(c.PromptObjects))
	fmt.Fprintf(&b, "- Objects that appeared in the video: %s\n", joinOrNone(c.AppearedObjects))
	fmt.Fprintf(&b, "- Objects from the prompt that were missing in the video: %s\n\n", joinOrNone(c.MissingObjects))
	b.WriteString("Please perform the following tasks:\n\n")
	b.WriteString("1. Provide concise, natural-language feedback to the user. Explain which key objects from their prompt ")
	b.WriteString("were missing in the generated video and suggest potential reasons why they might not have appeared ")
	b.WriteString("(e.g., ambiguity in the prompt, complexity, model limitations).\n")
	fmt.Fprintf(&b, "2. Then, suggest an %q. This improved prompt should address the issues, be clearer, ", RevisedHeading)
	b.WriteString("be more descriptive for visual elements, and increase the likelihood of all desired objects appearing in the video.\n")
	fmt.Fprintf(&b, "   IMPORTANT: The improved prompt itself must be concise and result in fewer than %d tokens ", RevisedTokenCap)
	fmt.Fprintf(&b, "when tokenized by OpenAI's CLIP model (which has a hard limit of %d tokens). ", CLIPTokenLimit)
	b.WriteString("Focus on critical visual details and avoid unnecessary verbosity. Output only the prompt text for this part.\n\n")
	fmt.Fprintf(&b, "Return your response structured with clear headings for %q and %q.", FeedbackHeading, RevisedHeading)
	return b.String()
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "None"
	}
	return strings.Join(values, ", ")
}

// Matched against the original text so indices stay valid for any input.
var revisedHeadingPattern = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(RevisedHeading))

// ExtractRevisedPrompt returns the text under the "Improved Prompt:" heading,
// stripped of markdown emphasis and surrounding quotes. It returns "" when the
// heading is absent or the body is N/A.
func ExtractRevisedPrompt(response string) string {
	matches := revisedHeadingPattern.FindAllStringIndex(response, -1)
	if len(matches) == 0 {
		return ""
	}
	body := response[matches[len(matches)-1][1]:]
	body = strings.TrimLeft(body, "*_# \t")
	body = strings.TrimSpace(body)
	body = strings.Trim(body, "\"'`“”")
	body = strings.TrimSpace(body)
	if strings.EqualFold(body, "N/A") {
		return ""
	}
	return body
}
