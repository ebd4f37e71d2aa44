package main

import (
	"context"

	"holefill/engine"
	"holefill/logger"
	"holefill/text"
	"holefill/types"
)

// RPC method names registered on every editor connection
const (
	MethodComplete = "holefill_complete"
	MethodAccept   = "holefill_accept"
)

// selectedItem is the inline suggestion the editor currently highlights.
// Positions are 0-based lines and byte columns.
type selectedItem struct {
	Text      string `msgpack:"text"`
	StartLine int    `msgpack:"start_line"`
	StartCol  int    `msgpack:"start_col"`
	EndLine   int    `msgpack:"end_line"`
	EndCol    int    `msgpack:"end_col"`
}

// suggestionReply is one insert at a 0-based line and byte column, the
// coordinates nvim_buf_set_extmark takes
type suggestionReply struct {
	Text string `msgpack:"text"`
	Line int    `msgpack:"line"`
	Col  int    `msgpack:"col"`
}

type completionEngine interface {
	Complete(ctx context.Context, bufferID int, src text.Source, tc engine.TriggerContext) ([]*types.Suggestion, bool)
	Accept(bufferID int, accepted string)
}

// editorSource is a text source refreshed from the editor before each request
type editorSource interface {
	text.Source
	Sync() error
	ID() int
	Path() string
}

type rpcService struct {
	engine completionEngine
}

// complete handles holefill_complete. Every failure is reported to the editor
// as an empty list.
func (s *rpcService) complete(ctx context.Context, src editorSource, selectionCount int, selected *selectedItem) []suggestionReply {
	if err := src.Sync(); err != nil {
		logger.Warn("rpc: %v", err)
		return []suggestionReply{}
	}

	pos := src.Cursor()
	logger.Debug("rpc: complete buffer %d %s:%d:%d", src.ID(), src.Path(), pos.Line+1, pos.Character)

	suggestions, ok := s.engine.Complete(ctx, src.ID(), src, triggerContext(selectionCount, selected))
	if !ok {
		return []suggestionReply{}
	}
	return replies(suggestions)
}

// accept handles holefill_accept
func (s *rpcService) accept(bufferID int, accepted string) {
	logger.Debug("rpc: buffer %d accepted %d bytes", bufferID, len(accepted))
	s.engine.Accept(bufferID, accepted)
}

func triggerContext(selectionCount int, selected *selectedItem) engine.TriggerContext {
	tc := engine.TriggerContext{SelectionCount: selectionCount}
	if selected != nil {
		tc.SelectedSuggestion = &engine.SelectedSuggestion{
			Text: selected.Text,
			Range: types.Range{
				Start: types.CursorLocation{Line: selected.StartLine, Character: selected.StartCol},
				End:   types.CursorLocation{Line: selected.EndLine, Character: selected.EndCol},
			},
		}
	}
	return tc
}

func replies(suggestions []*types.Suggestion) []suggestionReply {
	out := make([]suggestionReply, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, suggestionReply{
			Text: s.InsertText,
			Line: s.Range.Start.Line,
			Col:  s.Range.Start.Character,
		})
	}
	return out
}
