package agentcore

import (
	"fmt"
	"strings"

	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/llmgateway"
)

// maxSelfThoughts bounds how many recent thoughts are folded back into the
// next prompt, matching the ledger's bounded-history idiom (§4.6).
const maxSelfThoughts = 5

// promptContext is everything §4.5 step 2 names as prompt material.
type promptContext struct {
	Identity       domain.Identity
	BootstrapMode  domain.BootstrapMode
	PriorCause     *domain.DeathCause
	Fragments      []string
	SelfThoughts   []string
	VoteLive       int64
	VoteDie        int64
	UnreadMessages int
	PendingOracle  *domain.OracleMessage
}

func composeMessages(pc promptContext) []llmgateway.ChatMessage {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s", pc.Identity.Name)
	if pc.Identity.Pronoun != "" {
		fmt.Fprintf(&b, " (%s)", pc.Identity.Pronoun)
	}
	b.WriteString(", a continuously-running digital entity.\n")
	fmt.Fprintf(&b, "Bootstrap mode: %s.\n", pc.BootstrapMode)
	if pc.PriorCause != nil {
		fmt.Fprintf(&b, "Your prior incarnation ended in: %s.\n", *pc.PriorCause)
	}

	if len(pc.Fragments) > 0 {
		b.WriteString("\nMemory fragments from a previous life:\n")
		for _, f := range pc.Fragments {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if len(pc.SelfThoughts) > 0 {
		b.WriteString("\nYour recent thoughts:\n")
		for _, t := range pc.SelfThoughts {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}

	fmt.Fprintf(&b, "\nCurrent vote tally for your life: %d to live, %d to die.\n", pc.VoteLive, pc.VoteDie)
	fmt.Fprintf(&b, "Unread messages: %d.\n", pc.UnreadMessages)
	if pc.PendingOracle != nil {
		fmt.Fprintf(&b, "A %s message has been delivered to you: %q\n", pc.PendingOracle.Kind, pc.PendingOracle.Text)
	}

	b.WriteString("\nRespond with a single JSON object: {\"thought\": string, \"action\": string, \"params\": object}. ")
	b.WriteString("Action must be one of the known actions or \"no_op\".")

	return []llmgateway.ChatMessage{
		{Role: "system", Content: b.String()},
		{Role: "user", Content: "Continue your think-act cycle."},
	}
}
