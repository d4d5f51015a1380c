package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tmaeda/mailhub/internal/addr"
	"github.com/tmaeda/mailhub/internal/model"
	"github.com/tmaeda/mailhub/internal/remote"
)

var composeZone = time.FixedZone("JST", 9*60*60)

// Send delivers an outgoing message and records a copy in the sent
// folder. When the message replies to a stored one, that original is
// flagged replied.
func (e *Engine) Send(ctx context.Context, out remote.Outgoing) error {
	if err := e.sender.Send(out); err != nil {
		return err
	}

	if err := e.store.ReplaceSentMessage(ctx, e.localCopy(out, model.FolderSent)); err != nil {
		return err
	}

	if out.InReplyTo != "" {
		if err := e.store.MarkReplied(ctx, out.InReplyTo); err != nil {
			return fmt.Errorf("flagging %s replied: %w", out.InReplyTo, err)
		}
	}

	e.log.Info("sent message", "to", out.To)
	return nil
}

// SaveDraft stores an unsent composition in the drafts folder and
// returns its id.
func (e *Engine) SaveDraft(ctx context.Context, out remote.Outgoing) (string, error) {
	draft := e.localCopy(out, model.FolderDrafts)
	if err := e.store.ReplaceSentMessage(ctx, draft); err != nil {
		return "", err
	}
	return draft.MessageID, nil
}

// SendDraft delivers a stored draft and converts it into a sent record.
func (e *Engine) SendDraft(ctx context.Context, draftID string) error {
	draft, err := e.store.GetMessage(ctx, draftID)
	if err != nil {
		return err
	}
	if draft == nil {
		return fmt.Errorf("draft %s not found", draftID)
	}

	out := remote.Outgoing{
		To:      draft.OriginalTo,
		Subject: draft.Subject,
		Body:    draft.RawContent,
	}
	if err := e.Send(ctx, out); err != nil {
		return err
	}

	return e.store.PermanentlyDelete(ctx, draftID, model.DeleteLocalOnly)
}

// localCopy builds the stored record of an outgoing composition.
func (e *Engine) localCopy(out remote.Outgoing, folder string) model.Message {
	from := e.cfg.Account.Email
	now := time.Now().In(composeZone)

	return model.Message{
		MessageID:   uuid.NewString(),
		OriginalTo:  out.To,
		Subject:     out.Subject,
		Sender:      from,
		DisplayDate: now.Format("2006/01/02 15:04:05"),
		Timestamp:   now,
		RawContent:  out.Body,
		Provider:    addr.Provider(from),
		Folder:      &folder,
	}
}
