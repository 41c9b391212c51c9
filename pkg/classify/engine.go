package classify

import (
	"time"
)

// ProcessEvent folds one event into the profile and reclassifies. Both
// halves are pure: the input profile is never mutated.
func ProcessEvent(p Profile, e Event, th *Thresholds) Profile {
	return Classify(UpdateKPIs(p, e), th)
}

// UpdateKPIs applies the event's raw observation. Derived fields are left
// stale; Classify recomputes them.
func UpdateKPIs(p Profile, e Event) Profile {
	out := p
	out.Recent = append([]Message(nil), p.Recent...)

	if out.FirstSeenAt.IsZero() {
		out.FirstSeenAt = e.At
	}
	if e.At.After(out.LastSeenAt) {
		out.LastSeenAt = e.At
	}

	switch e.Type {
	case EventWalletScan:
		if e.Wallet != nil {
			out.Wallet = *e.Wallet
		}
		if e.Score > 0 {
			out.ExtractorScore = e.Score
		}
	case EventDiscordMessage:
		out.Recent = append(out.Recent, Message{Content: e.Message, At: e.At})
		if len(out.Recent) > ringSize {
			out.Recent = out.Recent[len(out.Recent)-ringSize:]
		}
	case EventSessionStart:
		out.SessionCount++
	case EventAdviceFollowed:
		out.AdviceFollowed++
	case EventRecommendClicked:
		out.RecommendHits++
	case EventCommandUsed:
		out.CommandsUsed++
	case EventSubUpgrade:
		if e.SubTier > out.SubTier {
			out.SubTier = e.SubTier
		}
	case EventRetentionUpdate:
		out.RetentionScore = e.Score
	}
	return out
}

// Classify recomputes every derived field from the accumulated KPIs, in a
// fixed order so each step can read the one before. Idempotent: running it
// twice yields the same profile.
func Classify(p Profile, th *Thresholds) Profile {
	out := p
	out.Recent = append([]Message(nil), p.Recent...)

	out.Archetype = archetypeOf(&out, th)
	out.Flags = flagsOf(&out, th)
	out.Tier = tierOf(&out, th)
	out.State = stateOf(&out, th)
	out.BehaviorTags = tagsOf(&out, th)
	out.IntentScores, out.Intent = intentOf(&out, th)
	return out
}

func archetypeOf(p *Profile, th *Thresholds) Archetype {
	w := &p.Wallet
	total := w.TotalUSD()
	switch {
	case p.ExtractorScore >= th.ExtractorScoreMin:
		return ArchetypeExtractor
	case total.GreaterThanOrEqual(th.DegenUSDMin) && w.TradeCount30 >= th.DegenTradeMin:
		return ArchetypeDegen
	case w.HeroCount <= th.InvestorHeroMax && total.GreaterThanOrEqual(th.InvestorUSDMin):
		return ArchetypeInvestor
	case w.HeroCount >= th.PlayerHeroMin:
		return ArchetypePlayer
	case w.HeroCount >= th.CasualHeroMin || total.GreaterThan(th.GuestUSDMax):
		return ArchetypeCasual
	default:
		return ArchetypeGuest
	}
}

func flagsOf(p *Profile, th *Thresholds) Flags {
	total := p.Wallet.TotalUSD()
	return Flags{
		IsWhale:     total.GreaterThanOrEqual(th.WhaleUSDMin),
		IsExtractor: p.ExtractorScore >= th.ExtractorScoreMin,
		IsHighPotential: len(p.Recent) >= th.HighPotentialMsgs &&
			total.LessThanOrEqual(th.HighPotentialUSD),
	}
}

func tierOf(p *Profile, th *Thresholds) int {
	if p.TierOverride != nil {
		return *p.TierOverride
	}
	total := p.Wallet.TotalUSD()
	financial := 0
	switch {
	case total.GreaterThanOrEqual(th.Tier4USD):
		financial = 4
	case total.GreaterThanOrEqual(th.Tier3USD):
		financial = 3
	case total.GreaterThanOrEqual(th.Tier2USD):
		financial = 2
	case total.GreaterThanOrEqual(th.Tier1USD):
		financial = 1
	}
	engage := p.SessionCount + p.CommandsUsed
	engagement := 0
	switch {
	case engage >= th.Tier2Engage:
		engagement = 2
	case engage >= th.Tier1Engage:
		engagement = 1
	}
	tier := financial
	if engagement > tier {
		tier = engagement
	}
	if th.WhaleFloorEnabled && p.Flags.IsWhale && tier < th.WhaleTierFloor {
		tier = th.WhaleTierFloor
	}
	return tier
}

func stateOf(p *Profile, th *Thresholds) State {
	// Retention is only meaningful once a RETENTION_UPDATE has arrived;
	// a fresh profile's zero must not read as churned.
	if countHits(p.Recent, churnKeywords) > 0 {
		return StateChurned
	}
	if p.RetentionScore > 0 {
		if p.RetentionScore < th.ChurnRetention {
			return StateChurned
		}
		if p.RetentionScore < th.DriftRetention {
			return StateDrifting
		}
	}
	if p.Flags.IsExtractor {
		return StateDrifting
	}
	if p.Wallet.CJewelUSD.GreaterThanOrEqual(th.CommittedCJewel) || p.SubTier > 0 {
		return StateCommitted
	}
	if p.messagesSince(p.LastSeenAt.AddDate(0, 0, -7)) >= th.EngagedMsgs7d {
		return StateEngaged
	}
	if countHits(p.Recent, positiveKeywords) >= th.EngagedPositive {
		return StateEngaged
	}
	return StateCurious
}

// tagsOf evaluates the twelve behavior tags in a fixed order so the output
// slice is stable across runs.
func tagsOf(p *Profile, th *Thresholds) []BehaviorTag {
	var tags []BehaviorTag
	days := int(p.LastSeenAt.Sub(p.FirstSeenAt).Hours() / 24)
	w := &p.Wallet
	total := w.TotalUSD()

	if days <= th.NewcomerMaxDays {
		tags = append(tags, TagNewcomer)
	}
	if days >= th.VeteranMinDays {
		tags = append(tags, TagVeteran)
	}
	if w.PoolCount >= th.GardenerPoolMin || countHits(p.Recent, gardenKeywords) >= 3 {
		tags = append(tags, TagGardener)
	}
	if countHits(p.Recent, questKeywords) >= 3 {
		tags = append(tags, TagQuester)
	}
	if w.TradeCount30 >= th.TraderSwapMin || countHits(p.Recent, tradeKeywords) >= 3 {
		tags = append(tags, TagTrader)
	}
	if w.CJewelUSD.GreaterThanOrEqual(th.HolderCJewelMin) {
		tags = append(tags, TagHolder)
	}
	if len(p.Recent) >= th.SocialMsgs {
		tags = append(tags, TagSocial)
	}
	if len(p.Recent) < th.LurkerMsgs && p.SessionCount > 0 {
		tags = append(tags, TagLurker)
	}
	if p.AdviceFollowed > 0 || p.RecommendHits > 0 {
		tags = append(tags, TagOptimizer)
	}
	if total.IsPositive() {
		share, _ := w.LPValueUSD.Div(total).Float64()
		if share >= th.RiskLPShare {
			tags = append(tags, TagRiskTaker)
		}
	}
	if w.BridgeOutUSD.GreaterThanOrEqual(th.BridgerUSDMin) {
		tags = append(tags, TagBridger)
	}
	if w.PetCount >= th.PetMin {
		tags = append(tags, TagPetCollector)
	}
	return tags
}

func intentOf(p *Profile, th *Thresholds) (map[IntentArchetype]float64, IntentArchetype) {
	lpUSD, _ := p.Wallet.LPValueUSD.Float64()
	scores := make(map[IntentArchetype]float64, len(th.Intent))
	for axis, w := range th.Intent {
		hits := countHits(p.Recent, intentKeywordTables[axis])
		s := w.PerHero*float64(p.Wallet.HeroCount) +
			w.PerLPUSD*lpUSD +
			w.PerMessage*float64(hits) +
			w.PerAdvice*float64(p.AdviceFollowed) +
			w.PerCommand*float64(p.CommandsUsed)
		if s > w.Cap {
			s = w.Cap
		}
		scores[axis] = s
	}

	if p.Wallet.BridgeOutUSD.GreaterThanOrEqual(th.ForceBridgeUSD) || p.ExtractorScore >= th.ForceExtractor {
		return scores, IntentInvestorExtractor
	}

	// Argmax over a fixed axis order, then demand a clear margin; a tie
	// keeps the previous intent rather than flapping.
	var best, second float64
	winner := IntentCasualPlayer
	for _, axis := range intentAxes() {
		if s := scores[axis]; s > best {
			second = best
			best, winner = s, axis
		} else if s > second {
			second = s
		}
	}
	if best-second < th.IntentMinGap {
		if p.Intent != "" {
			return scores, p.Intent
		}
		return scores, IntentCasualPlayer
	}
	return scores, winner
}

func (p *Profile) messagesSince(cutoff time.Time) int {
	n := 0
	for _, m := range p.Recent {
		if !m.At.Before(cutoff) {
			n++
		}
	}
	return n
}
