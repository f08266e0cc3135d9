package service

import (
	"strings"

	"chatsurvey/internal/branching"
	"chatsurvey/internal/model"
)

// EmptyMessageSuffix marks the message block shown for an empty answer to a
// block with onEmpty.message
const EmptyMessageSuffix = "-empty-message"

// advance applies an answer to the session and moves its pointer. Live
// submissions and replay both go through here so they cannot diverge.
func (s *RuntimeService) advance(session *model.RuntimeSession, block *model.Block, blockID string, answer model.Answer) *model.Block {
	s.applyAnswer(session.State, block, blockID, answer)
	return s.route(session, block, answer)
}

func (s *RuntimeService) applyAnswer(state *model.SessionState, block *model.Block, blockID string, answer model.Answer) {
	state.Record(blockID, answer)

	if block.Variable != "" {
		state.Variables[block.Variable] = answer.Clone().Value()
	}
	if opt, ok := block.MatchOption(answer); ok {
		for k, v := range opt.SetVariables {
			state.Variables[k] = model.CloneValue(v)
		}
	}
	s.deriver.Derive(block, answer, state.Variables)
}

// route resolves the block after current and leaves the session pointer on
// it. Skipped blocks and routing hops move the pointer without being
// recorded. A nil result means the survey has nowhere left to go.
func (s *RuntimeService) route(session *model.RuntimeSession, current *model.Block, answer model.Answer) *model.Block {
	cfg, state := session.Config, session.State

	for hop := 0; ; hop++ {
		if hop > s.maxHops {
			s.logger.Warn("routing hop limit reached",
				"session_id", session.SessionID,
				"block_id", current.ID,
				"max_hops", s.maxHops,
			)
			state.CurrentBlockID = ""
			return nil
		}

		if answer.IsEmptyText() && current.OnEmpty != nil && current.OnEmpty.Message != "" {
			msg := emptyMessageBlock(current)
			state.CurrentBlockID = msg.ID
			return msg
		}

		nextID := nextBlockID(current, answer, state.Variables)
		state.CurrentBlockID = nextID
		if nextID == "" {
			return nil
		}
		next, ok := lookupBlock(cfg, nextID)
		if !ok {
			s.logger.Warn("next block not in survey config", "session_id", session.SessionID, "block_id", nextID)
			state.CurrentBlockID = ""
			return nil
		}

		switch {
		case next.ShowIf != nil && !branching.Evaluate(next.ShowIf, state.Variables, ""):
			current, answer = next, model.NoAnswer()
		case isRoutingHop(next):
			current, answer = next, model.Acknowledged
		default:
			return next
		}
	}
}

// nextBlockID applies the routing precedence: onEmpty target, literal next,
// matching option's next, then conditional routing.
func nextBlockID(current *model.Block, answer model.Answer, vars map[string]any) string {
	if answer.IsEmptyText() && current.OnEmpty != nil && current.OnEmpty.Next != "" {
		return current.OnEmpty.Next
	}
	if id := current.LiteralNext(); id != "" {
		return id
	}
	if opt, ok := current.MatchOption(answer); ok && opt.Next != "" {
		return opt.Next
	}
	if current.Next != nil && current.Next.Routing != nil {
		return branching.ResolveNext(current.Next.Routing, vars, current.Variable)
	}
	if current.ConditionalNext != nil {
		return branching.ResolveNext(current.ConditionalNext, vars, current.Variable)
	}
	return ""
}

// isRoutingHop reports blocks the respondent never sees
func isRoutingHop(b *model.Block) bool {
	if b.Type == model.BlockRouting {
		return true
	}
	return b.Type == model.BlockDynamicMessage &&
		!b.Content.Keyed() && b.Content.Text == "" &&
		b.ConditionalNext != nil
}

// lookupBlock finds a configured block, or the empty-answer message derived
// from one
func lookupBlock(cfg *model.SurveyConfig, id string) (*model.Block, bool) {
	if id == "" {
		return nil, false
	}
	if b, ok := cfg.Block(id); ok {
		return b, true
	}
	baseID, found := strings.CutSuffix(id, EmptyMessageSuffix)
	if !found {
		return nil, false
	}
	base, ok := cfg.Block(baseID)
	if !ok || base.OnEmpty == nil || base.OnEmpty.Message == "" {
		return nil, false
	}
	return emptyMessageBlock(base), true
}

func emptyMessageBlock(from *model.Block) *model.Block {
	msg := &model.Block{
		ID:      from.ID + EmptyMessageSuffix,
		Type:    model.BlockDynamicMessage,
		Content: model.Content{Text: from.OnEmpty.Message},
		Next:    from.Next,
	}
	if from.OnEmpty.Next != "" {
		msg.Next = &model.Next{Target: from.OnEmpty.Next}
	}
	return msg
}
