package usecase_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/gitpulse/pkg/domain/model"
	"github.com/m-mizutani/gitpulse/pkg/usecase"
)

func TestDispatcher_BroadcastOrder(t *testing.T) {
	ctx := context.Background()
	d := usecase.NewDispatcher()
	a := newSubscriber("a")
	b := newSubscriber("b")
	d.Subscribe(a)
	d.Subscribe(b)

	d.EmitBaseline(ctx, &model.Baseline{RepositoryPath: "/r"})
	for i := 0; i < 5; i++ {
		d.EmitChange(ctx, &model.ChangeEvent{
			Kind:   model.ChangeKindCommit,
			Commit: &model.CommitRecord{ID: fmt.Sprintf("c%d", i)},
		})
	}
	d.EmitAdvisory(ctx, model.SeverityInfo, "done")

	for _, sub := range []*RecordingSubscriber{a, b} {
		msgs := sub.Messages()
		gt.Number(t, len(msgs)).Equal(7)
		gt.Value(t, msgs[0].Type).Equal(model.MessageTypeBaseline)
		for i := 0; i < 5; i++ {
			gt.Value(t, msgs[i+1].Change.Commit.ID).Equal(fmt.Sprintf("c%d", i))
		}
		gt.Value(t, msgs[6].Advisory.Message).Equal("done")
	}
}

func TestDispatcher_NoSubscribersDrops(t *testing.T) {
	ctx := context.Background()
	d := usecase.NewDispatcher()

	d.EmitBaseline(ctx, &model.Baseline{RepositoryPath: "/r"})
	d.EmitChange(ctx, &model.ChangeEvent{
		Kind:         model.ChangeKindPush,
		RemoteBranch: &model.RemoteBranch{Remote: "origin", Branch: "main"},
	})

	// a late subscriber gets no replay
	late := newSubscriber("late")
	d.Subscribe(late)
	gt.Number(t, len(late.Messages())).Equal(0)

	d.EmitAdvisory(ctx, model.SeverityInfo, "hello")
	gt.Number(t, len(late.Messages())).Equal(1)
}

func TestDispatcher_DropsFailingSubscriber(t *testing.T) {
	ctx := context.Background()
	d := usecase.NewDispatcher()
	ok := newSubscriber("ok")
	broken := newSubscriber("broken")
	broken.fail = true
	d.Subscribe(ok)
	d.Subscribe(broken)

	d.EmitAdvisory(ctx, model.SeverityInfo, "first")
	gt.Number(t, d.SubscriberCount()).Equal(1)

	d.EmitAdvisory(ctx, model.SeverityInfo, "second")
	gt.Number(t, len(ok.Messages())).Equal(2)
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	d := usecase.NewDispatcher()
	sub := newSubscriber("s")
	d.Subscribe(sub)
	d.Subscribe(sub) // re-subscribing does not duplicate deliveries

	d.EmitAdvisory(ctx, model.SeverityInfo, "one")
	d.Unsubscribe("s")
	d.Unsubscribe("s")
	d.EmitAdvisory(ctx, model.SeverityInfo, "two")

	gt.Number(t, len(sub.Messages())).Equal(1)
	gt.Number(t, d.SubscriberCount()).Equal(0)
}

func TestDispatcher_AdvisoryOnce(t *testing.T) {
	ctx := context.Background()
	d := usecase.NewDispatcher()
	sub := newSubscriber("s")
	d.Subscribe(sub)

	for i := 0; i < 3; i++ {
		d.AdvisoryOnce(ctx, "push-channel", model.SeverityWarning, "push channel unavailable")
	}
	d.AdvisoryOnce(ctx, "other", model.SeverityWarning, "other notice")

	gt.Number(t, len(sub.advisories(model.SeverityWarning))).Equal(2)
}

func TestDispatcher_DropsMalformedChange(t *testing.T) {
	ctx := context.Background()
	d := usecase.NewDispatcher()
	sub := newSubscriber("s")
	d.Subscribe(sub)

	malformed := []*model.ChangeEvent{
		{Kind: model.ChangeKindCommit},
		{Kind: model.ChangeKindMerge, Commit: &model.CommitRecord{ID: "m1"}, Ref: "main"},
		{Kind: model.ChangeKindCheckout},
		{Kind: model.ChangeKindPush},
		{Kind: model.ChangeKindUnknown, Commit: &model.CommitRecord{ID: "c1"}},
	}
	for _, e := range malformed {
		d.EmitChange(ctx, e)
	}
	gt.Number(t, len(sub.Messages())).Equal(0)

	d.EmitChange(ctx, &model.ChangeEvent{Kind: model.ChangeKindCheckout, Ref: "main"})
	gt.Number(t, len(sub.changes())).Equal(1)
	gt.Number(t, d.SubscriberCount()).Equal(1)
}

func TestDispatcher_NoticesReplayToLateSubscriber(t *testing.T) {
	ctx := context.Background()
	d := usecase.NewDispatcher()

	// emitted before anyone is listening
	d.AdvisoryOnce(ctx, "push-channel-degraded", model.SeverityWarning, "push channel unavailable")
	d.AdvisoryOnce(ctx, "push-channel-degraded", model.SeverityWarning, "push channel unavailable")
	d.EmitAdvisory(ctx, model.SeverityInfo, "transient")

	notices := d.Notices()
	gt.Number(t, len(notices)).Equal(1)
	gt.Value(t, notices[0].Severity).Equal(model.SeverityWarning)
	gt.Value(t, notices[0].Message).Equal("push channel unavailable")

	late := newSubscriber("late")
	other := newSubscriber("other")
	d.Subscribe(late)
	d.Subscribe(other)
	gt.Number(t, len(late.Messages())).Equal(0)

	gt.NoError(t, d.SendNotices(ctx, "late"))
	warnings := late.advisories(model.SeverityWarning)
	gt.Number(t, len(warnings)).Equal(1)
	gt.Value(t, warnings[0].Message).Equal("push channel unavailable")
	gt.Number(t, len(other.Messages())).Equal(0)

	gt.Error(t, d.SendNotices(ctx, "missing"))
}

func TestDispatcher_SendNoticesWithoutNotices(t *testing.T) {
	ctx := context.Background()
	d := usecase.NewDispatcher()
	sub := newSubscriber("s")
	d.Subscribe(sub)

	gt.NoError(t, d.SendNotices(ctx, "s"))
	gt.Number(t, len(sub.Messages())).Equal(0)
	gt.Number(t, len(d.Notices())).Equal(0)
}

func TestDispatcher_SendTo(t *testing.T) {
	ctx := context.Background()
	d := usecase.NewDispatcher()
	a := newSubscriber("a")
	b := newSubscriber("b")
	d.Subscribe(a)
	d.Subscribe(b)

	err := d.SendTo(ctx, "a", &model.Message{Type: model.MessageTypeBaseline, Baseline: &model.Baseline{}})
	gt.NoError(t, err)
	gt.Number(t, len(a.Messages())).Equal(1)
	gt.Number(t, len(b.Messages())).Equal(0)

	gt.Error(t, d.SendTo(ctx, "missing", &model.Message{}))

	b.fail = true
	gt.Error(t, d.SendTo(ctx, "b", &model.Message{}))
	gt.Number(t, d.SubscriberCount()).Equal(1)
}

func TestDispatcher_ForwardsWarningsToNotifier(t *testing.T) {
	ctx := context.Background()
	n := &MockNotifier{ch: make(chan *model.Advisory, 10)}
	d := usecase.NewDispatcher(usecase.WithNotifier(n))

	d.EmitAdvisory(ctx, model.SeverityInfo, "not forwarded")
	d.EmitAdvisory(ctx, model.SeverityError, "forwarded")
	gt.True(t, d.Wait(time.Second))

	select {
	case adv := <-n.ch:
		gt.Value(t, adv.Message).Equal("forwarded")
		gt.Value(t, adv.Severity).Equal(model.SeverityError)
	case <-time.After(time.Second):
		t.Fatal("notifier was not called")
	}

	select {
	case adv := <-n.ch:
		t.Fatalf("unexpected advisory forwarded: %v", adv.Message)
	case <-time.After(50 * time.Millisecond):
	}
}
