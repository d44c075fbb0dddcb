package chat

import (
	"fmt"
	"regexp"
	"strings"
)

var multiSpacePattern = regexp.MustCompile(` +`)

// cleanText collapses runs of spaces into one and trims the result.
// Newlines are preserved.
func cleanText(text string) string {
	return strings.TrimSpace(multiSpacePattern.ReplaceAllString(text, " "))
}

// BuildContextPrompt builds the ephemeral system prompt for a text
// context turn. When bestGuess is set, the model is allowed to answer
// from its own knowledge if the retrieved documents are irrelevant.
func BuildContextPrompt(context *Context, bestGuess bool) string {
	extra := "If nothing from this information is relevant, say your database don't have that information,\n even if you do have a guess."
	if bestGuess {
		extra = "If nothing from this information is relevant, use your knowledge to guess."
	}

	return cleanText(fmt.Sprintf(
		"[INSTRUCTIONS]\n"+
			"The documents below are the top results returned from a search engine.\n"+
			"They may be relevant or completely irrelevant to the question.\n"+
			"%s\n"+
			"Embed any image you use with the exact format ![Asset](<image_id>) where <image_id> is the raw image UUID.\n"+
			"\n"+
			"[INFORMATION]\n"+
			"%s",
		extra,
		context.Text,
	))
}

// BuildNoContextGuessPrompt builds the ephemeral system prompt asking
// the model for a labeled guess. When a canned no-context message was
// already shown to the user, the reply is instructed to continue from
// it with a conjunction.
func BuildNoContextGuessPrompt(noContextMessage string, useMessage bool) string {
	if useMessage {
		flattened := strings.ReplaceAll(noContextMessage, "\n", "")
		return cleanText(fmt.Sprintf(
			"[EXTRA INSTRUCTIONS]\n"+
				"\n"+
				"No information was found regarding the following question.\n"+
				"The user was already sent the message %q to let them know this.\n"+
				"\n"+
				"Use your knowledge to suggest what you think. Make sure you say it's a guess.\n"+
				"Start your reply with a conjunction, like \"However\", or \"But\", and attempt to make a guess.",
			flattened,
		))
	}

	return cleanText(
		"[EXTRA INSTRUCTIONS]\n" +
			"\n" +
			"No information was found regarding the following question.\n" +
			"Use your knowledge to suggest what you think. Make sure you say it's a guess.",
	)
}

// BuildNoContextLLMPrompt builds the ephemeral system prompt telling
// the model to state that it does not know the answer.
func BuildNoContextLLMPrompt() string {
	return cleanText(
		"[EXTRA INSTRUCTIONS]\n" +
			"\n" +
			"No information was found regarding the following question.\n" +
			"Respond that you do not know the answer, taking the question into account.",
	)
}
