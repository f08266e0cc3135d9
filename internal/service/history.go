package service

import (
	"chatsurvey/internal/model"
	"chatsurvey/internal/template"
)

// history rebuilds the chat transcript from completed blocks. Routing blocks
// are left out; messages are bot-only entries with no answer.
func (s *RuntimeService) history(session *model.RuntimeSession) []model.ConversationItem {
	state := session.State
	items := []model.ConversationItem{}

	for _, id := range state.CompletedBlocks {
		block, ok := lookupBlock(session.Config, id)
		if !ok || block.Type == model.BlockRouting {
			continue
		}

		q := s.render(block, state.Variables)
		item := model.ConversationItem{
			BlockID:         id,
			QuestionContent: q.Content.Text,
			QuestionType:    block.Type,
		}
		if block.Type == model.BlockDynamicMessage {
			item.IsBotOnly = true
		} else {
			text := template.FormatAnswer(state.Answers[id], q)
			item.AnswerContent = &text
		}
		items = append(items, item)
	}
	return items
}
