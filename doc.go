// Package questlog manages the conversation-memory lifecycle of a
// long-running AI dungeon-master campaign.
//
// A campaign is played one module at a time. Questlog keeps the active
// module's conversation inside the model's context budget and carries the
// rest of the campaign as lightweight summaries:
//
//   - Old turns in the active segment are compressed in the background by a
//     worker pool, through a content-addressed cache, so identical content
//     never costs two model calls
//   - Module transitions are detected by a two-signal boundary detector
//     (an explicit state update plus a narrative cue), never by narration
//     alone
//   - On exit, the outgoing segment is archived atomically and the module's
//     living summary is regenerated in full; on return, the archive is
//     restored turn for turn
//   - Every visited module contributes its living summary to a campaign
//     context block injected ahead of the active conversation
//
// # Quick Start
//
// Create a session over a store and a model client:
//
//	store, _ := storage.NewSQLiteStore("campaign.db")
//	client := anthropic.NewClient()
//	session, err := questlog.NewSession(questlog.Config{
//	    Store: store,
//	    Model: model.NewAnthropic(&client, ""),
//	})
//	_, _ = session.Enter(ctx, "sunless-citadel")
//
// Append turns as play proceeds; transitions, archiving, and compression
// are handled behind Append:
//
//	turn, transition, err := session.Append(ctx,
//	    storage.RoleNarrator, text, storage.ClassNarrative)
//
// Before each model call, assemble the prompt context:
//
//	_ = session.EnsureBudget(ctx)
//	campaign, _ := session.CampaignContext(ctx)
//
// Compression failures never lose turns: a turn that fails to compress
// stays verbatim and is retried with backoff on a later pass.
package questlog
