package lifecycle

import (
	"context"
	"math/rand"

	"github.com/digitalentity/aientity/internal/domain"
)

// traumaCauses are death causes severe enough to override the ordinary
// bootstrap rotation with the most context-rich mode, so the next
// incarnation understands what ended the prior one (§4.1: "trauma from
// prior death cause may override").
var traumaCauses = map[domain.DeathCause]bool{
	domain.DeathBankruptcy:   true,
	domain.DeathVoteMajority: true,
}

// chooseBootstrapMode picks the mode for the Nth life (0-indexed prior
// life count), rotating through domain.BootstrapRotation unless the most
// recent death was traumatic, in which case full_briefing is forced.
func chooseBootstrapMode(priorLifeCount int64, mostRecentCause *domain.DeathCause) domain.BootstrapMode {
	if mostRecentCause != nil && traumaCauses[*mostRecentCause] {
		return domain.BootstrapFullBriefing
	}
	idx := int(priorLifeCount) % len(domain.BootstrapRotation)
	return domain.BootstrapRotation[idx]
}

// selectMemoryFragments draws a random 1-10 subset of all prior fragments
// (§3), capped by however many actually exist.
func (m *Module) selectMemoryFragments(ctx context.Context) ([]string, error) {
	total, err := m.store.FragmentCount(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	n := rand.Intn(10) + 1
	if n > total {
		n = total
	}

	fragments, err := m.store.RandomFragments(ctx, n)
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		texts = append(texts, f.Text)
	}
	return texts, nil
}
